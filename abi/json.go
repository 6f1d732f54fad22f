package abi

import (
	"bytes"
	"encoding/json"
	"math/big"
	"reflect"
	"strings"
	"unicode/utf8"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var bigIntType = reflect.TypeOf(&big.Int{})

// toGo converts a JSON value into the exact Go representation go-ethereum
// packs for t, following the parameter tree in lockstep.
func toGo(p Parameter, t ethabi.Type, raw json.RawMessage) (reflect.Value, error) {
	switch p.kind {
	case KindTuple:
		return tupleToGo(p, t, raw)
	case KindArray:
		return arrayToGo(p, t, raw)
	default:
		return scalarToGo(p, t, raw)
	}
}

func tupleToGo(p Parameter, t ethabi.Type, raw json.RawMessage) (reflect.Value, error) {
	fields, err := tupleFields(p, raw)
	if err != nil {
		return reflect.Value{}, err
	}

	out := reflect.New(t.TupleType).Elem()
	for i, c := range p.components {
		v, err := toGo(c, *t.TupleElems[i], fields[i])
		if err != nil {
			return reflect.Value{}, err
		}
		out.Field(i).Set(v)
	}
	return out, nil
}

// tupleFields accepts either a positional JSON array or an object keyed by
// component name.
func tupleFields(p Parameter, raw json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var byName map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &byName); err != nil {
			return nil, malformed(err, "invalid tuple object for %s", describe(p))
		}
		fields := make([]json.RawMessage, len(p.components))
		for i, c := range p.components {
			v, ok := byName[c.Name]
			if !ok || c.Name == "" {
				return nil, malformed(nil, "missing component %q of %s", c.Name, describe(p))
			}
			fields[i] = v
		}
		return fields, nil
	}

	var fields []json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, malformed(err, "invalid tuple array for %s", describe(p))
	}
	if len(fields) != len(p.components) {
		return nil, malformed(nil, "%s expects %d components, got %d", describe(p), len(p.components), len(fields))
	}
	return fields, nil
}

func arrayToGo(p Parameter, t ethabi.Type, raw json.RawMessage) (reflect.Value, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return reflect.Value{}, malformed(err, "invalid array for %s", describe(p))
	}

	var out reflect.Value
	if p.length < 0 {
		out = reflect.MakeSlice(t.GetType(), len(items), len(items))
	} else {
		if len(items) != p.length {
			return reflect.Value{}, malformed(nil, "%s expects %d elements, got %d", describe(p), p.length, len(items))
		}
		out = reflect.New(t.GetType()).Elem()
	}

	for i, item := range items {
		v, err := toGo(*p.elem, *t.Elem, item)
		if err != nil {
			return reflect.Value{}, err
		}
		out.Index(i).Set(v)
	}
	return out, nil
}

func scalarToGo(p Parameter, t ethabi.Type, raw json.RawMessage) (reflect.Value, error) {
	switch t.T {
	case ethabi.AddressTy:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || !common.IsHexAddress(s) {
			return reflect.Value{}, malformed(err, "invalid address for %s", describe(p))
		}
		return reflect.ValueOf(common.HexToAddress(s)), nil

	case ethabi.BoolTy:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return reflect.Value{}, malformed(err, "invalid bool for %s", describe(p))
		}
		return reflect.ValueOf(b), nil

	case ethabi.StringTy:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return reflect.Value{}, malformed(err, "invalid string for %s", describe(p))
		}
		return reflect.ValueOf(s), nil

	case ethabi.BytesTy:
		b, err := hexBytes(p, raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b), nil

	case ethabi.FixedBytesTy:
		b, err := hexBytes(p, raw)
		if err != nil {
			return reflect.Value{}, err
		}
		if len(b) != t.Size {
			return reflect.Value{}, malformed(nil, "%s expects %d bytes, got %d", describe(p), t.Size, len(b))
		}
		out := reflect.New(t.GetType()).Elem()
		for i, c := range b {
			out.Index(i).SetUint(uint64(c))
		}
		return out, nil

	case ethabi.IntTy, ethabi.UintTy:
		n, err := parseInteger(p, raw)
		if err != nil {
			return reflect.Value{}, err
		}
		if err := checkRange(p, n, t.T == ethabi.UintTy, t.Size); err != nil {
			return reflect.Value{}, err
		}
		goType := t.GetType()
		if goType == bigIntType {
			return reflect.ValueOf(n), nil
		}
		out := reflect.New(goType).Elem()
		if t.T == ethabi.UintTy {
			out.SetUint(n.Uint64())
		} else {
			out.SetInt(n.Int64())
		}
		return out, nil

	default:
		return reflect.Value{}, unsupportedType("unsupported type %s", describe(p))
	}
}

func hexBytes(p Parameter, raw json.RawMessage) ([]byte, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, malformed(err, "invalid hex for %s", describe(p))
	}
	if s == "0x" || s == "0X" {
		return []byte{}, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, malformed(err, "invalid hex for %s", describe(p))
	}
	return b, nil
}

// parseInteger accepts JSON numbers, decimal strings and 0x-prefixed hex
// strings without ever going through float64 or int64.
func parseInteger(p Parameter, raw json.RawMessage) (*big.Int, error) {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, malformed(err, "invalid integer for %s", describe(p))
		}
		s = strings.TrimSpace(s)
	}

	n := new(big.Int)
	var ok bool
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		_, ok = n.SetString(s[2:], 16)
	case strings.HasPrefix(s, "-0x") || strings.HasPrefix(s, "-0X"):
		_, ok = n.SetString(s[3:], 16)
		n.Neg(n)
	default:
		_, ok = n.SetString(s, 10)
	}
	if !ok {
		return nil, malformed(nil, "invalid integer %s for %s", s, describe(p))
	}
	return n, nil
}

func checkRange(p Parameter, n *big.Int, unsigned bool, bits int) error {
	if unsigned {
		if n.Sign() < 0 || n.BitLen() > bits {
			return malformed(nil, "%s out of range for %s", n, describe(p))
		}
		return nil
	}

	limit := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	minValue := new(big.Int).Neg(limit)
	if n.Cmp(minValue) < 0 || n.Cmp(limit) >= 0 {
		return malformed(nil, "%s out of range for %s", n, describe(p))
	}
	return nil
}

// fromGo converts an unpacked go-ethereum value back to its canonical JSON
// form: checksummed addresses, decimal strings for integers, 0x hex for bytes
// and positional arrays for tuples.
func fromGo(p Parameter, t ethabi.Type, v reflect.Value) (interface{}, error) {
	switch p.kind {
	case KindTuple:
		if v.Kind() != reflect.Struct || v.NumField() != len(p.components) {
			return nil, malformed(nil, "unexpected value %s for %s", v.Kind(), describe(p))
		}
		out := make([]interface{}, len(p.components))
		for i, c := range p.components {
			jv, err := fromGo(c, *t.TupleElems[i], v.Field(i))
			if err != nil {
				return nil, err
			}
			out[i] = jv
		}
		return out, nil

	case KindArray:
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return nil, malformed(nil, "unexpected value %s for %s", v.Kind(), describe(p))
		}
		out := make([]interface{}, v.Len())
		for i := range out {
			jv, err := fromGo(*p.elem, *t.Elem, v.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = jv
		}
		return out, nil
	}

	switch t.T {
	case ethabi.AddressTy:
		addr, ok := v.Interface().(common.Address)
		if !ok {
			return nil, malformed(nil, "unexpected value for %s", describe(p))
		}
		return addr.Hex(), nil
	case ethabi.BoolTy:
		return v.Bool(), nil
	case ethabi.StringTy:
		if !utf8.ValidString(v.String()) {
			return nil, malformed(nil, "invalid UTF-8 in %s", describe(p))
		}
		return v.String(), nil
	case ethabi.BytesTy:
		return hexutil.Encode(v.Bytes()), nil
	case ethabi.FixedBytesTy:
		b := make([]byte, v.Len())
		for i := range b {
			b[i] = byte(v.Index(i).Uint())
		}
		return hexutil.Encode(b), nil
	case ethabi.IntTy, ethabi.UintTy:
		switch v.Kind() {
		case reflect.Ptr:
			n, ok := v.Interface().(*big.Int)
			if !ok || n == nil {
				return nil, malformed(nil, "unexpected value for %s", describe(p))
			}
			return n.String(), nil
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return new(big.Int).SetUint64(v.Uint()).String(), nil
		default:
			return big.NewInt(v.Int()).String(), nil
		}
	default:
		return nil, unsupportedType("unsupported type %s", describe(p))
	}
}

func describe(p Parameter) string {
	if p.Name == "" {
		return p.CanonicalType()
	}
	return p.Name + " (" + p.CanonicalType() + ")"
}
