package abi

import (
	"encoding/json"
	"fmt"
	"reflect"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// TypedValue is the JSON wire form of a single argument:
// {"type": "<solidity type>", "value": <json>}.
type TypedValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// ethType converts the parameter tree into a go-ethereum ABI type. Tuple
// components get positional field names so that decorator names (which may
// be empty, duplicated or not valid Go identifiers) never reach reflect.
func (p Parameter) ethType() (ethabi.Type, error) {
	t, err := ethabi.NewType(p.TypeString(), "", p.tupleMarshaling())
	if err != nil {
		return ethabi.Type{}, unsupportedType("cannot build abi type %s: %v", p.CanonicalType(), err)
	}
	return t, nil
}

func (p Parameter) tupleMarshaling() []ethabi.ArgumentMarshaling {
	switch p.kind {
	case KindArray:
		return p.elem.tupleMarshaling()
	case KindTuple:
		out := make([]ethabi.ArgumentMarshaling, len(p.components))
		for i, c := range p.components {
			out[i] = ethabi.ArgumentMarshaling{
				Name:       componentFieldName(i),
				Type:       c.TypeString(),
				Components: c.tupleMarshaling(),
			}
		}
		return out
	default:
		return nil
	}
}

func componentFieldName(i int) string {
	return fmt.Sprintf("f%d", i)
}

func arguments(params []Parameter) (ethabi.Arguments, error) {
	args := make(ethabi.Arguments, len(params))
	for i, p := range params {
		t, err := p.ethType()
		if err != nil {
			return nil, err
		}
		args[i] = ethabi.Argument{Name: componentFieldName(i), Type: t}
	}
	return args, nil
}

// Encode ABI-encodes values against params as a single tuple (the layout of
// function arguments and of non-indexed event data).
func Encode(params []Parameter, values []json.RawMessage) ([]byte, error) {
	if len(params) != len(values) {
		return nil, NewError(ParamCountMismatch, "expected %d values, got %d", len(params), len(values))
	}

	args, err := arguments(params)
	if err != nil {
		return nil, err
	}

	goValues := make([]interface{}, len(params))
	for i, p := range params {
		v, err := toGo(p, args[i].Type, values[i])
		if err != nil {
			return nil, err
		}
		goValues[i] = v.Interface()
	}

	data, err := args.Pack(goValues...)
	if err != nil {
		return nil, malformed(err, "cannot pack values")
	}
	return data, nil
}

// Decode is the inverse of Encode.
func Decode(params []Parameter, data []byte) (values []json.RawMessage, err error) {
	args, err := arguments(params)
	if err != nil {
		return nil, err
	}

	defer func() {
		// go-ethereum bounds-checks offsets, but a hostile payload must never
		// take the process down.
		if r := recover(); r != nil {
			values, err = nil, malformed(nil, "cannot unpack data: %v", r)
		}
	}()

	if len(params) == 0 {
		return []json.RawMessage{}, nil
	}
	if len(data)%32 != 0 {
		return nil, malformed(nil, "data length %d is not a multiple of 32", len(data))
	}

	unpacked, err := args.Unpack(data)
	if err != nil {
		return nil, malformed(err, "cannot unpack data")
	}
	if len(unpacked) != len(params) {
		return nil, malformed(nil, "expected %d values, unpacked %d", len(params), len(unpacked))
	}

	values = make([]json.RawMessage, len(params))
	for i, p := range params {
		jv, err := fromGo(p, args[i].Type, reflect.ValueOf(unpacked[i]))
		if err != nil {
			return nil, err
		}
		values[i], err = json.Marshal(jv)
		if err != nil {
			return nil, malformed(err, "cannot marshal %s", p.CanonicalType())
		}
	}
	return values, nil
}

// EncodeValue encodes a single value as a one element tuple.
func EncodeValue(p Parameter, value json.RawMessage) ([]byte, error) {
	return Encode([]Parameter{p}, []json.RawMessage{value})
}

// DecodeValue decodes a single value encoded by EncodeValue.
func DecodeValue(p Parameter, data []byte) (json.RawMessage, error) {
	values, err := Decode([]Parameter{p}, data)
	if err != nil {
		return nil, err
	}
	return values[0], nil
}

// EncodedHash returns keccak256 of the ABI encoding of value, the form in
// which indexed complex event parameters are stored in a topic.
func EncodedHash(p Parameter, value json.RawMessage) (common.Hash, error) {
	data, err := EncodeValue(p, value)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(data), nil
}

// EncodeTyped checks every supplied type against the declared parameter and
// encodes the values.
func EncodeTyped(params []Parameter, values []TypedValue) ([]byte, error) {
	if len(params) != len(values) {
		return nil, NewError(ParamCountMismatch, "expected %d parameters, got %d", len(params), len(values))
	}

	raw := make([]json.RawMessage, len(values))
	for i, v := range values {
		if !params[i].MatchesType(v.Type) {
			return nil, NewError(
				TypeMismatch, "parameter %d (%s) declared as %s, got %s",
				i, params[i].Name, params[i].TypeString(), v.Type,
			)
		}
		raw[i] = v.Value
	}
	return Encode(params, raw)
}

// DecodeTyped decodes data into the {type, value} wire form.
func DecodeTyped(params []Parameter, data []byte) ([]TypedValue, error) {
	values, err := Decode(params, data)
	if err != nil {
		return nil, err
	}

	out := make([]TypedValue, len(params))
	for i, p := range params {
		out[i] = TypedValue{Type: p.TypeString(), Value: values[i]}
	}
	return out, nil
}
