package abi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Parameter.
type Kind int

const (
	KindScalar Kind = iota
	KindTuple
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindTuple:
		return "tuple"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Parameter is a node of a Solidity type tree: a scalar, a tuple of
// components in declaration order, or an array of an element type.
// The zero value is not valid; use Scalar, Tuple, Array or ParseType.
type Parameter struct {
	Name string

	kind       Kind
	scalar     string
	components []Parameter
	elem       *Parameter
	length     int // -1 for dynamic arrays
}

var (
	intTypeRegex   = regexp.MustCompile(`^(u?int)([0-9]*)$`)
	bytesTypeRegex = regexp.MustCompile(`^bytes([0-9]+)$`)
	arraySuffix    = regexp.MustCompile(`\[([0-9]*)\]$`)
)

// Scalar builds an elementary parameter. Aliases uint and int are
// canonicalised to uint256 and int256.
func Scalar(name, solidityType string) (Parameter, error) {
	t, err := canonicalScalar(solidityType)
	if err != nil {
		return Parameter{}, err
	}
	return Parameter{Name: name, kind: KindScalar, scalar: t}, nil
}

// Tuple builds a struct parameter. A tuple must have at least one component.
func Tuple(name string, components ...Parameter) (Parameter, error) {
	if len(components) == 0 {
		return Parameter{}, unsupportedType("tuple %q has no components", name)
	}
	return Parameter{Name: name, kind: KindTuple, components: components}, nil
}

// Array builds T[length], or T[] when length is negative.
func Array(name string, elem Parameter, length int) Parameter {
	if length < 0 {
		length = -1
	}
	e := elem
	e.Name = ""
	return Parameter{Name: name, kind: KindArray, elem: &e, length: length}
}

// ParseType builds a parameter from a Solidity type string such as
// "uint256", "address[]", "tuple" or "tuple[2][]". Components are required
// when the base type is a tuple and rejected otherwise.
func ParseType(name, solidityType string, components []Parameter) (Parameter, error) {
	t := strings.ReplaceAll(strings.TrimSpace(solidityType), " ", "")
	if t == "" {
		return Parameter{}, unsupportedType("empty type for parameter %q", name)
	}

	if m := arraySuffix.FindStringSubmatchIndex(t); m != nil {
		elem, err := ParseType("", t[:m[0]], components)
		if err != nil {
			return Parameter{}, err
		}
		length := -1
		if m[3] > m[2] {
			length, err = strconv.Atoi(t[m[2]:m[3]])
			if err != nil || length == 0 {
				return Parameter{}, unsupportedType("invalid array length in %q", solidityType)
			}
		}
		return Array(name, elem, length), nil
	}
	if strings.ContainsAny(t, "[]") {
		return Parameter{}, unsupportedType("unbalanced brackets in %q", solidityType)
	}

	if t == "tuple" {
		if len(components) == 0 {
			return Parameter{}, unsupportedType("tuple parameter %q requires components", name)
		}
		return Tuple(name, components...)
	}
	if len(components) != 0 {
		return Parameter{}, unsupportedType("non-tuple parameter %q of type %s must not have components", name, t)
	}
	return Scalar(name, t)
}

func canonicalScalar(t string) (string, error) {
	switch t {
	case "address", "bool", "string", "bytes":
		return t, nil
	}

	if m := intTypeRegex.FindStringSubmatch(t); m != nil {
		if m[2] == "" {
			return m[1] + "256", nil
		}
		size, err := strconv.Atoi(m[2])
		if err != nil || size < 8 || size > 256 || size%8 != 0 {
			return "", unsupportedType("invalid integer size in %q", t)
		}
		return t, nil
	}

	if m := bytesTypeRegex.FindStringSubmatch(t); m != nil {
		size, err := strconv.Atoi(m[1])
		if err != nil || size < 1 || size > 32 {
			return "", unsupportedType("invalid fixed bytes size in %q", t)
		}
		return t, nil
	}

	return "", unsupportedType("unsupported solidity type %q", t)
}

func (p Parameter) Kind() Kind {
	return p.kind
}

// Components returns the tuple components, nil for other kinds.
func (p Parameter) Components() []Parameter {
	return p.components
}

// Elem returns the element type of an array, nil for other kinds.
func (p Parameter) Elem() *Parameter {
	return p.elem
}

// Len returns the fixed length of an array, -1 for dynamic arrays and 0 for
// non-array parameters.
func (p Parameter) Len() int {
	if p.kind != KindArray {
		return 0
	}
	return p.length
}

// TypeString returns the decorator form of the type: tuples are written as
// "tuple", e.g. "tuple[]" or "uint256[3]".
func (p Parameter) TypeString() string {
	switch p.kind {
	case KindTuple:
		return "tuple"
	case KindArray:
		return p.elem.TypeString() + p.arraySuffix()
	default:
		return p.scalar
	}
}

// CanonicalType returns the form used in function and event signatures,
// with tuples expanded, e.g. "(uint256,address)[]".
func (p Parameter) CanonicalType() string {
	switch p.kind {
	case KindTuple:
		parts := make([]string, len(p.components))
		for i, c := range p.components {
			parts[i] = c.CanonicalType()
		}
		return "(" + strings.Join(parts, ",") + ")"
	case KindArray:
		return p.elem.CanonicalType() + p.arraySuffix()
	default:
		return p.scalar
	}
}

func (p Parameter) arraySuffix() string {
	if p.length < 0 {
		return "[]"
	}
	return fmt.Sprintf("[%d]", p.length)
}

// Dynamic reports whether the ABI encoding of p is referenced through an
// offset: strings, bytes, dynamic arrays, and any tuple or fixed array that
// contains one of those.
func (p Parameter) Dynamic() bool {
	switch p.kind {
	case KindTuple:
		for _, c := range p.components {
			if c.Dynamic() {
				return true
			}
		}
		return false
	case KindArray:
		return p.length < 0 || p.elem.Dynamic()
	default:
		return p.scalar == "string" || p.scalar == "bytes"
	}
}

// Hashed reports whether an indexed event parameter of this type is stored
// in its topic as a keccak256 hash instead of the value itself.
func (p Parameter) Hashed() bool {
	return p.kind != KindScalar || p.scalar == "string" || p.scalar == "bytes"
}

// MatchesType reports whether a caller supplied type string denotes the same
// type as p. Both the decorator and the canonical forms are accepted.
func (p Parameter) MatchesType(solidityType string) bool {
	t := NormalizeType(solidityType)
	return t == p.TypeString() || t == p.CanonicalType()
}

// NormalizeType strips whitespace and expands the uint and int aliases in a
// type or signature string.
func NormalizeType(t string) string {
	t = strings.ReplaceAll(strings.TrimSpace(t), " ", "")

	var b strings.Builder
	for len(t) > 0 {
		i := strings.IndexAny(t, "[](),")
		token, rest := t, ""
		if i >= 0 {
			token, rest = t[:i], t[i:]
		}
		switch token {
		case "uint":
			token = "uint256"
		case "int":
			token = "int256"
		}
		b.WriteString(token)
		if rest == "" {
			break
		}
		b.WriteByte(rest[0])
		t = rest[1:]
	}
	return b.String()
}
