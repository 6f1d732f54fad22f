package contract

import (
	"encoding/json"
	"strings"

	"contract-engine/abi"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ContractDecorator describes the callable surface of a contract
// independently of any deployment.
type ContractDecorator struct {
	ID           uuid.UUID             `json:"id"`
	Name         string                `json:"name"`
	Description  string                `json:"description,omitempty"`
	Constructors []ContractConstructor `json:"constructors"`
	Functions    []ContractFunction    `json:"functions"`
	Events       []ContractEvent       `json:"events"`
	// Artifact is the 0x hex creation bytecode.
	Artifact string `json:"artifact,omitempty"`
}

type ContractParameter struct {
	Name         string              `json:"name"`
	Description  string              `json:"description,omitempty"`
	SolidityType string              `json:"solidityType"`
	Parameters   []ContractParameter `json:"parameters,omitempty"`
	Hints        json.RawMessage     `json:"hints,omitempty"`
}

type EventParameter struct {
	ContractParameter
	Indexed bool `json:"indexed"`
}

type ContractFunction struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Signature   string              `json:"signature"`
	Inputs      []ContractParameter `json:"inputs"`
	Outputs     []ContractParameter `json:"outputs"`
	ReadOnly    bool                `json:"readOnly"`
}

type ContractConstructor struct {
	Description string              `json:"description,omitempty"`
	Signature   string              `json:"signature"`
	Inputs      []ContractParameter `json:"inputs"`
	Payable     bool                `json:"payable"`
}

type ContractEvent struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Signature   string           `json:"signature"`
	Inputs      []EventParameter `json:"inputs"`
}

// Parameter converts the decorator record into a codec type tree.
func (p ContractParameter) Parameter() (abi.Parameter, error) {
	components, err := Parameters(p.Parameters)
	if err != nil {
		return abi.Parameter{}, err
	}
	return abi.ParseType(p.Name, p.SolidityType, components)
}

func Parameters(ps []ContractParameter) ([]abi.Parameter, error) {
	if len(ps) == 0 {
		return nil, nil
	}
	out := make([]abi.Parameter, len(ps))
	for i, p := range ps {
		var err error
		if out[i], err = p.Parameter(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Function finds a function by signature or by name. A bare name shared by
// several overloads selects the one whose inputs accept the types of params.
func (d *ContractDecorator) Function(nameOrSignature string, params ...abi.TypedValue) (*ContractFunction, bool) {
	normalized := abi.NormalizeType(nameOrSignature)
	var named []*ContractFunction
	for i := range d.Functions {
		f := &d.Functions[i]
		if f.Signature != "" && abi.NormalizeType(f.Signature) == normalized {
			return f, true
		}
		if f.Name == nameOrSignature {
			named = append(named, f)
		}
	}

	switch len(named) {
	case 0:
		return nil, false
	case 1:
		return named[0], true
	}
	for _, f := range named {
		if f.accepts(params) {
			return f, true
		}
	}
	return nil, false
}

func (f ContractFunction) accepts(params []abi.TypedValue) bool {
	if len(f.Inputs) != len(params) {
		return false
	}
	inputs, err := Parameters(f.Inputs)
	if err != nil {
		return false
	}
	for i, p := range inputs {
		if !p.MatchesType(params[i].Type) {
			return false
		}
	}
	return true
}

// Constructor finds a constructor by signature. An empty signature selects
// the only constructor.
func (d *ContractDecorator) Constructor(signature string) (*ContractConstructor, bool) {
	if signature == "" && len(d.Constructors) == 1 {
		return &d.Constructors[0], true
	}
	normalized := abi.NormalizeType(signature)
	for i := range d.Constructors {
		if abi.NormalizeType(d.Constructors[i].Signature) == normalized {
			return &d.Constructors[i], true
		}
	}
	return nil, false
}

// Bytecode decodes the creation bytecode artifact.
func (d *ContractDecorator) Bytecode() ([]byte, error) {
	artifact := strings.TrimSpace(d.Artifact)
	if artifact == "" {
		return nil, errors.Errorf("decorator %s has no bytecode", d.Name)
	}
	if !strings.HasPrefix(artifact, "0x") {
		artifact = "0x" + artifact
	}
	code, err := hexutil.Decode(artifact)
	if err != nil {
		return nil, errors.Wrapf(err, "decorator %s has invalid bytecode", d.Name)
	}
	return code, nil
}

// CanonicalSignature returns the signature hashed into the selector. The
// declared signature is normalised; without one it is derived from the
// name and inputs.
func (f ContractFunction) CanonicalSignature() (string, error) {
	inputs, err := Parameters(f.Inputs)
	if err != nil {
		return "", err
	}
	return canonicalSignature(f.Name, f.Signature, inputs)
}

func (e ContractEvent) parameters() ([]abi.Parameter, error) {
	out := make([]abi.Parameter, len(e.Inputs))
	for i, p := range e.Inputs {
		var err error
		if out[i], err = p.Parameter(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e ContractEvent) CanonicalSignature() (string, error) {
	params, err := e.parameters()
	if err != nil {
		return "", err
	}
	return canonicalSignature(e.Name, e.Signature, params)
}

// canonicalSignature checks a declared signature against the declared
// inputs so that a selector is never computed from a signature that does
// not describe the encoded arguments.
func canonicalSignature(name, declared string, inputs []abi.Parameter) (string, error) {
	if declared == "" {
		if name == "" {
			return "", abi.NewError(abi.UnsupportedType, "function has neither name nor signature")
		}
		return abi.Signature(name, inputs), nil
	}

	declaredName, declaredParams, err := abi.ParseSignature(declared)
	if err != nil {
		return "", err
	}
	signature := abi.Signature(declaredName, declaredParams)
	if expected := abi.Signature(declaredName, inputs); expected != signature {
		return "", abi.NewError(abi.TypeMismatch, "signature %s does not match inputs %s", signature, expected)
	}
	return signature, nil
}
