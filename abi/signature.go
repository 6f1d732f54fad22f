package abi

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signature builds the canonical signature "name(type,...)" hashed into
// function selectors and event topics.
func Signature(name string, params []Parameter) string {
	types := make([]string, len(params))
	for i, p := range params {
		types[i] = p.CanonicalType()
	}
	return name + "(" + strings.Join(types, ",") + ")"
}

// SignatureHash returns keccak256 of the normalised signature.
func SignatureHash(signature string) common.Hash {
	return crypto.Keccak256Hash([]byte(NormalizeType(signature)))
}

// ParseSignature splits a canonical signature such as
// "transfer(address,uint256)" or "submit((uint256,bytes32)[],bool)" into
// its name and unnamed parameters.
func ParseSignature(signature string) (string, []Parameter, error) {
	s := NormalizeType(signature)
	open := strings.IndexByte(s, '(')
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return "", nil, unsupportedType("invalid signature %q", signature)
	}

	name := s[:open]
	params, err := parseTypeList(s[open+1 : len(s)-1])
	if err != nil {
		return "", nil, err
	}
	return name, params, nil
}

func parseTypeList(list string) ([]Parameter, error) {
	if list == "" {
		return []Parameter{}, nil
	}

	parts, err := splitTopLevel(list)
	if err != nil {
		return nil, err
	}

	params := make([]Parameter, len(parts))
	for i, part := range parts {
		params[i], err = parseCanonicalType(part)
		if err != nil {
			return nil, err
		}
	}
	return params, nil
}

// parseCanonicalType accepts an expanded tuple form "(t1,t2)[k]" as well as
// everything ParseType accepts.
func parseCanonicalType(t string) (Parameter, error) {
	if !strings.HasPrefix(t, "(") {
		return ParseType("", t, nil)
	}

	closing, err := matchingParen(t)
	if err != nil {
		return Parameter{}, err
	}
	components, err := parseTypeList(t[1:closing])
	if err != nil {
		return Parameter{}, err
	}
	return ParseType("", "tuple"+t[closing+1:], components)
}

func splitTopLevel(list string) ([]string, error) {
	var parts []string
	depth, start := 0, 0
	for i, c := range list {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, unsupportedType("unbalanced parentheses in %q", list)
			}
		case ',':
			if depth == 0 {
				parts = append(parts, list[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, unsupportedType("unbalanced parentheses in %q", list)
	}
	return append(parts, list[start:]), nil
}

func matchingParen(t string) (int, error) {
	depth := 0
	for i, c := range t {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, unsupportedType("unbalanced parentheses in %q", t)
}
