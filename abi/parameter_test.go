package abi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustScalar(t *testing.T, name, typ string) Parameter {
	t.Helper()
	p, err := Scalar(name, typ)
	require.NoError(t, err)
	return p
}

func mustTuple(t *testing.T, name string, components ...Parameter) Parameter {
	t.Helper()
	p, err := Tuple(name, components...)
	require.NoError(t, err)
	return p
}

func TestParseTypeScalars(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"address", "address"},
		{"bool", "bool"},
		{"string", "string"},
		{"bytes", "bytes"},
		{"bytes1", "bytes1"},
		{"bytes32", "bytes32"},
		{"uint", "uint256"},
		{"int", "int256"},
		{"uint8", "uint8"},
		{" int24 ", "int24"},
		{"uint256", "uint256"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParseType("x", tt.in, nil)
			require.NoError(t, err)
			assert.Equal(t, KindScalar, p.Kind())
			assert.Equal(t, tt.want, p.TypeString())
		})
	}
}

func TestParseTypeUnsupported(t *testing.T) {
	for _, in := range []string{"", "uint7", "uint264", "int0", "bytes0", "bytes33", "fixed128x18", "function", "uint256[", "uint256]", "uint256[0]", "mapping"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseType("x", in, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsupportedType), "got %v", err)
		})
	}
}

func TestParseTypeTupleInvariant(t *testing.T) {
	owner := mustScalar(t, "owner", "address")

	_, err := ParseType("s", "tuple", nil)
	assert.True(t, errors.Is(err, ErrUnsupportedType))

	_, err = ParseType("s", "tuple[]", nil)
	assert.True(t, errors.Is(err, ErrUnsupportedType))

	_, err = ParseType("s", "uint256", []Parameter{owner})
	assert.True(t, errors.Is(err, ErrUnsupportedType))

	p, err := ParseType("s", "tuple", []Parameter{owner})
	require.NoError(t, err)
	assert.Equal(t, KindTuple, p.Kind())
	assert.Len(t, p.Components(), 1)
}

func TestParseTypeArrays(t *testing.T) {
	amount := mustScalar(t, "amount", "uint")
	memo := mustScalar(t, "memo", "string")

	p, err := ParseType("grid", "tuple[2][]", []Parameter{amount, memo})
	require.NoError(t, err)

	assert.Equal(t, KindArray, p.Kind())
	assert.Equal(t, -1, p.Len())
	assert.Equal(t, KindArray, p.Elem().Kind())
	assert.Equal(t, 2, p.Elem().Len())
	assert.Equal(t, KindTuple, p.Elem().Elem().Kind())

	assert.Equal(t, "tuple[2][]", p.TypeString())
	assert.Equal(t, "(uint256,string)[2][]", p.CanonicalType())
	assert.Equal(t, "grid", p.Name)
	assert.Equal(t, "", p.Elem().Name)

	fixed, err := ParseType("ids", "uint8[3]", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, fixed.Len())
	assert.Equal(t, 0, amount.Len())
}

func TestDynamic(t *testing.T) {
	static := mustTuple(t, "s", mustScalar(t, "a", "uint256"), mustScalar(t, "b", "bytes32"))
	dynamic := mustTuple(t, "d", mustScalar(t, "a", "uint256"), mustScalar(t, "b", "bytes"))
	nested := mustTuple(t, "n", mustScalar(t, "a", "bool"), dynamic)

	assert.False(t, mustScalar(t, "a", "address").Dynamic())
	assert.True(t, mustScalar(t, "a", "string").Dynamic())
	assert.False(t, static.Dynamic())
	assert.True(t, dynamic.Dynamic())
	assert.True(t, nested.Dynamic())
	assert.False(t, Array("x", static, 4).Dynamic())
	assert.True(t, Array("x", static, -1).Dynamic())
	assert.True(t, Array("x", dynamic, 2).Dynamic())
}

func TestHashed(t *testing.T) {
	assert.False(t, mustScalar(t, "a", "address").Hashed())
	assert.False(t, mustScalar(t, "a", "bytes32").Hashed())
	assert.True(t, mustScalar(t, "a", "string").Hashed())
	assert.True(t, mustScalar(t, "a", "bytes").Hashed())
	assert.True(t, Array("a", mustScalar(t, "", "uint8"), 2).Hashed())
	assert.True(t, mustTuple(t, "a", mustScalar(t, "b", "bool")).Hashed())
}

func TestMatchesType(t *testing.T) {
	p, err := ParseType("orders", "tuple[]", []Parameter{mustScalar(t, "id", "uint"), mustScalar(t, "to", "address")})
	require.NoError(t, err)

	assert.True(t, p.MatchesType("tuple[]"))
	assert.True(t, p.MatchesType("(uint256,address)[]"))
	assert.True(t, p.MatchesType("(uint, address)[]"))
	assert.False(t, p.MatchesType("tuple"))
	assert.False(t, p.MatchesType("(uint256,address)"))

	u := mustScalar(t, "n", "uint256")
	assert.True(t, u.MatchesType("uint"))
	assert.True(t, u.MatchesType("uint256"))
	assert.False(t, u.MatchesType("uint128"))
	assert.False(t, u.MatchesType("int256"))
}
