package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"contract-engine/abi"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type artifactFile struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
}

// LoadArtifact reads a compiler artifact (hardhat or foundry layout, with
// "abi" and "bytecode" keys) and builds its decorator.
func LoadArtifact(fileName string) (*ContractDecorator, error) {
	file, err := os.ReadFile(fileName)
	if err != nil {
		return nil, errors.Wrap(err, "LoadArtifact")
	}

	var artifact artifactFile
	if err := json.Unmarshal(file, &artifact); err != nil {
		return nil, errors.Wrap(err, "LoadArtifact: invalid artifact")
	}
	if len(artifact.ABI) == 0 {
		return nil, errors.Errorf("LoadArtifact: %s has no abi", fileName)
	}

	name := artifact.ContractName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	}

	decorator, err := DecoratorFromABI(name, artifact.ABI)
	if err != nil {
		return nil, err
	}
	decorator.Artifact, err = bytecodeString(artifact.Bytecode)
	if err != nil {
		return nil, err
	}
	return decorator, nil
}

// bytecodeString accepts both "bytecode": "0x.." and "bytecode": {"object": "0x.."}.
func bytecodeString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var code string
	if err := json.Unmarshal(raw, &code); err == nil {
		return code, nil
	}
	var object struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(raw, &object); err != nil {
		return "", errors.Wrap(err, "invalid bytecode")
	}
	return object.Object, nil
}

// DecoratorFromABI converts a standard JSON ABI into a decorator.
// Functions and events are sorted by signature, anonymous events are
// skipped since they have no selector topic.
func DecoratorFromABI(name string, abiJSON []byte) (*ContractDecorator, error) {
	parsed, err := ethabi.JSON(bytes.NewReader(abiJSON))
	if err != nil {
		return nil, errors.Wrap(err, "DecoratorFromABI")
	}

	d := &ContractDecorator{
		ID:           uuid.New(),
		Name:         name,
		Constructors: []ContractConstructor{},
		Functions:    []ContractFunction{},
		Events:       []ContractEvent{},
	}

	if parsed.Constructor.Type == ethabi.Constructor {
		inputs := fromArguments(parsed.Constructor.Inputs)
		params, err := Parameters(inputs)
		if err != nil {
			return nil, err
		}
		d.Constructors = append(d.Constructors, ContractConstructor{
			Signature: abi.Signature("constructor", params),
			Inputs:    inputs,
			Payable:   parsed.Constructor.IsPayable(),
		})
	}

	for _, m := range parsed.Methods {
		d.Functions = append(d.Functions, ContractFunction{
			Name:      m.RawName,
			Signature: m.Sig,
			Inputs:    fromArguments(m.Inputs),
			Outputs:   fromArguments(m.Outputs),
			ReadOnly:  m.IsConstant(),
		})
	}
	sort.Slice(d.Functions, func(i, j int) bool { return d.Functions[i].Signature < d.Functions[j].Signature })

	for _, e := range parsed.Events {
		if e.Anonymous {
			continue
		}
		inputs := make([]EventParameter, len(e.Inputs))
		for i, arg := range e.Inputs {
			inputs[i] = EventParameter{ContractParameter: fromEthType(arg.Name, arg.Type), Indexed: arg.Indexed}
		}
		d.Events = append(d.Events, ContractEvent{Name: e.RawName, Signature: e.Sig, Inputs: inputs})
	}
	sort.Slice(d.Events, func(i, j int) bool { return d.Events[i].Signature < d.Events[j].Signature })

	return d, nil
}

func fromArguments(args ethabi.Arguments) []ContractParameter {
	out := make([]ContractParameter, len(args))
	for i, arg := range args {
		out[i] = fromEthType(arg.Name, arg.Type)
	}
	return out
}

func fromEthType(name string, t ethabi.Type) ContractParameter {
	switch t.T {
	case ethabi.TupleTy:
		components := make([]ContractParameter, len(t.TupleElems))
		for i, e := range t.TupleElems {
			components[i] = fromEthType(t.TupleRawNames[i], *e)
		}
		return ContractParameter{Name: name, SolidityType: "tuple", Parameters: components}
	case ethabi.SliceTy, ethabi.ArrayTy:
		p := fromEthType("", *t.Elem)
		p.Name = name
		if t.T == ethabi.SliceTy {
			p.SolidityType += "[]"
		} else {
			p.SolidityType += fmt.Sprintf("[%d]", t.Size)
		}
		return p
	default:
		return ContractParameter{Name: name, SolidityType: t.String()}
	}
}
