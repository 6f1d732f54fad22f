package contract

import (
	"bytes"

	"contract-engine/abi"

	"github.com/ethereum/go-ethereum/crypto"
)

const selectorLength = 4

// Selector returns the first four bytes of keccak256 of the signature.
func Selector(signature string) []byte {
	return crypto.Keccak256([]byte(abi.NormalizeType(signature)))[:selectorLength]
}

// BuildCallData validates params against the declared inputs of fn and
// returns selector ‖ encoded arguments.
func BuildCallData(fn ContractFunction, params []abi.TypedValue) ([]byte, error) {
	inputs, err := Parameters(fn.Inputs)
	if err != nil {
		return nil, err
	}
	signature, err := canonicalSignature(fn.Name, fn.Signature, inputs)
	if err != nil {
		return nil, err
	}

	encoded, err := abi.EncodeTyped(inputs, params)
	if err != nil {
		return nil, err
	}
	return append(Selector(signature), encoded...), nil
}

// BuildCallDataFromSignature encodes a call for which only the canonical
// signature is known, e.g. "balanceOf(address)".
func BuildCallDataFromSignature(signature string, params []abi.TypedValue) ([]byte, error) {
	name, inputs, err := abi.ParseSignature(signature)
	if err != nil {
		return nil, err
	}

	encoded, err := abi.EncodeTyped(inputs, params)
	if err != nil {
		return nil, err
	}
	return append(Selector(abi.Signature(name, inputs)), encoded...), nil
}

// BuildConstructorData appends the encoded constructor arguments to the
// decorator bytecode.
func BuildConstructorData(d *ContractDecorator, ctor ContractConstructor, params []abi.TypedValue) ([]byte, error) {
	code, err := d.Bytecode()
	if err != nil {
		return nil, err
	}
	inputs, err := Parameters(ctor.Inputs)
	if err != nil {
		return nil, err
	}

	encoded, err := abi.EncodeTyped(inputs, params)
	if err != nil {
		return nil, err
	}
	return append(code, encoded...), nil
}

// DecodeOutputs decodes the return data of a call to fn.
func DecodeOutputs(fn ContractFunction, data []byte) ([]abi.TypedValue, error) {
	outputs, err := Parameters(fn.Outputs)
	if err != nil {
		return nil, err
	}
	return abi.DecodeTyped(outputs, data)
}

// DecodedCall is a transaction input matched against a decorator function.
type DecodedCall struct {
	Signature string           `json:"signature"`
	Arguments []abi.TypedValue `json:"arguments"`
}

// DecodeCallData finds the function whose selector prefixes data and
// decodes its arguments. It returns false when no function matches.
func (d *ContractDecorator) DecodeCallData(data []byte) (*DecodedCall, bool, error) {
	if len(data) < selectorLength {
		return nil, false, abi.NewError(abi.MalformedData, "call data shorter than a selector")
	}

	for _, fn := range d.Functions {
		signature, err := fn.CanonicalSignature()
		if err != nil {
			return nil, false, err
		}
		if !bytes.Equal(Selector(signature), data[:selectorLength]) {
			continue
		}

		inputs, err := Parameters(fn.Inputs)
		if err != nil {
			return nil, false, err
		}
		args, err := abi.DecodeTyped(inputs, data[selectorLength:])
		if err != nil {
			return nil, true, err
		}
		return &DecodedCall{Signature: signature, Arguments: args}, true, nil
	}
	return nil, false, nil
}
