package request

import "contract-engine/contract"

const (
	erc20BalanceOf = "balanceOf(address)"
	erc20Transfer  = "transfer(address,uint256)"
)

// erc20Decorator decodes the Transfer events of token locks.
var erc20Decorator = &contract.ContractDecorator{
	Name: "ERC20",
	Events: []contract.ContractEvent{{
		Name:      "Transfer",
		Signature: "Transfer(address,address,uint256)",
		Inputs: []contract.EventParameter{
			{ContractParameter: contract.ContractParameter{Name: "from", SolidityType: "address"}, Indexed: true},
			{ContractParameter: contract.ContractParameter{Name: "to", SolidityType: "address"}, Indexed: true},
			{ContractParameter: contract.ContractParameter{Name: "value", SolidityType: "uint256"}},
		},
	}},
}
