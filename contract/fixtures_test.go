package contract

import (
	"encoding/json"
	"testing"

	"contract-engine/abi"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	ownerAddress   = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	profileAddress = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

func scalar(name, typ string) ContractParameter {
	return ContractParameter{Name: name, SolidityType: typ}
}

func indexed(p ContractParameter) EventParameter {
	return EventParameter{ContractParameter: p, Indexed: true}
}

func notIndexed(p ContractParameter) EventParameter {
	return EventParameter{ContractParameter: p}
}

func keyParameter(name string) ContractParameter {
	return ContractParameter{
		Name:         name,
		SolidityType: "tuple",
		Parameters:   []ContractParameter{scalar("id", "uint256"), scalar("salt", "bytes32")},
	}
}

func profileParameter(name string) ContractParameter {
	return ContractParameter{
		Name:         name,
		SolidityType: "tuple",
		Parameters:   []ContractParameter{scalar("wallet", "address"), scalar("nickname", "string")},
	}
}

func registryDecorator() *ContractDecorator {
	return &ContractDecorator{
		ID:   uuid.MustParse("6b1f0b7e-3f0c-4a53-9a3e-0c1f2d3e4f50"),
		Name: "Registry",
		Constructors: []ContractConstructor{{
			Signature: "constructor(address,uint256)",
			Inputs:    []ContractParameter{scalar("initialOwner", "address"), scalar("fee", "uint256")},
		}},
		Functions: []ContractFunction{
			{
				Name:      "setOwner",
				Signature: "setOwner(address)",
				Inputs:    []ContractParameter{scalar("newOwner", "address")},
			},
			{
				Name:      "owner",
				Signature: "owner()",
				Outputs:   []ContractParameter{scalar("", "address")},
				ReadOnly:  true,
			},
			{
				Name: "register",
				Inputs: []ContractParameter{
					{Name: "keys", SolidityType: "tuple[]", Parameters: keyParameter("").Parameters},
					profileParameter("profile"),
				},
			},
		},
		Events: []ContractEvent{
			{
				Name:      "OwnerChanged",
				Signature: "OwnerChanged(address,address)",
				Inputs: []EventParameter{
					indexed(scalar("previousOwner", "address")),
					indexed(scalar("newOwner", "address")),
				},
			},
			{
				Name: "Registered",
				Inputs: []EventParameter{
					indexed(scalar("owner", "address")),
					indexed(scalar("label", "string")),
					indexed(keyParameter("key")),
					notIndexed(scalar("amount", "uint256")),
					notIndexed(profileParameter("profile")),
				},
			},
		},
		Artifact: "0x6080604052",
	}
}

func typed(typ, value string) abi.TypedValue {
	return abi.TypedValue{Type: typ, Value: json.RawMessage(value)}
}

func encodeData(t *testing.T, params []ContractParameter, values ...string) []byte {
	t.Helper()
	ps, err := Parameters(params)
	require.NoError(t, err)

	raw := make([]json.RawMessage, len(values))
	for i, v := range values {
		raw[i] = json.RawMessage(v)
	}
	data, err := abi.Encode(ps, raw)
	require.NoError(t, err)
	return data
}
