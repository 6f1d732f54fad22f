package request

import (
	"encoding/json"
	"math/big"
	"strings"
	"time"

	"contract-engine/abi"
	"contract-engine/chain"
	"contract-engine/contract"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

type Kind string

const (
	KindBalance       Kind = "balance"
	KindAuthorization Kind = "authorization"
	KindFunctionCall  Kind = "function_call"
	KindReadonlyCall  Kind = "readonly_call"
	KindLock          Kind = "lock"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

type ScreenConfig struct {
	BeforeActionMessage string `json:"beforeActionMessage,omitempty"`
	AfterActionMessage  string `json:"afterActionMessage,omitempty"`
}

// Base holds the fields shared by every request kind. ActualWallet,
// SignedMessage and TxHash are written at most once through the attach
// operations.
type Base struct {
	ID              uuid.UUID
	Chain           chain.ChainSpec
	RequestedWallet string
	ActualWallet    string
	SignedMessage   string
	TxHash          string
	ArbitraryData   json.RawMessage
	ScreenConfig    ScreenConfig
	RedirectURL     string
	CreatedAt       time.Time
}

func (b *Base) base() *Base {
	return b
}

// Request is one of *BalanceRequest, *AuthorizationRequest,
// *FunctionCallRequest, *ReadonlyCallRequest or *LockRequest.
type Request interface {
	Kind() Kind
	Validate() error
	base() *Base
}

// Common returns the shared fields of r.
func Common(r Request) *Base {
	return r.base()
}

type AssetType string

const (
	AssetNative AssetType = "NATIVE"
	AssetToken  AssetType = "TOKEN"
)

// BalanceRequest asks a wallet to prove ownership by signing the
// verification message, after which its balance is read.
type BalanceRequest struct {
	Base `json:"-"`

	AssetType    AssetType `json:"assetType,omitempty"`
	TokenAddress string    `json:"tokenAddress,omitempty"`
	BlockNumber  *uint64   `json:"blockNumber,omitempty"`
}

// AuthorizationRequest asks a wallet to sign a message. MessageToSign
// replaces the default authorization template when set.
type AuthorizationRequest struct {
	Base `json:"-"`

	MessageToSign string `json:"messageToSign,omitempty"`
}

// ContractCall names a function on a deployed contract with its
// arguments. Function is a name or signature resolved against Decorator,
// or a full signature when no decorator is attached.
type ContractCall struct {
	ContractAddress string                      `json:"contractAddress"`
	DecoratorID     *uuid.UUID                  `json:"decoratorId,omitempty"`
	Decorator       *contract.ContractDecorator `json:"-"`
	Function        string                      `json:"function"`
	Params          []abi.TypedValue            `json:"params"`
}

// FunctionCallRequest is settled by a transaction that calls the function
// with exactly the stored arguments and value.
type FunctionCallRequest struct {
	Base `json:"-"`
	ContractCall

	Value string `json:"value,omitempty"`
}

// ReadonlyCallRequest is settled by executing the call at BlockNumber
// (latest when nil).
type ReadonlyCallRequest struct {
	Base `json:"-"`
	ContractCall

	BlockNumber *uint64 `json:"blockNumber,omitempty"`
}

// LockRequest is settled by a transaction moving Amount to LockAddress:
// a plain value transfer for the native asset, an ERC-20 transfer when
// TokenAddress is set.
type LockRequest struct {
	Base `json:"-"`

	LockAddress  string     `json:"lockAddress"`
	TokenAddress string     `json:"tokenAddress,omitempty"`
	Amount       string     `json:"amount"`
	UnlockAt     *time.Time `json:"unlockAt,omitempty"`
}

func (*BalanceRequest) Kind() Kind       { return KindBalance }
func (*AuthorizationRequest) Kind() Kind { return KindAuthorization }
func (*FunctionCallRequest) Kind() Kind  { return KindFunctionCall }
func (*ReadonlyCallRequest) Kind() Kind  { return KindReadonlyCall }
func (*LockRequest) Kind() Kind          { return KindLock }

// New returns an empty request of the given kind.
func New(kind Kind) (Request, error) {
	switch kind {
	case KindBalance:
		return &BalanceRequest{}, nil
	case KindAuthorization:
		return &AuthorizationRequest{}, nil
	case KindFunctionCall:
		return &FunctionCallRequest{}, nil
	case KindReadonlyCall:
		return &ReadonlyCallRequest{}, nil
	case KindLock:
		return &LockRequest{}, nil
	default:
		return nil, validationError("unknown request kind %q", kind)
	}
}

// SignatureKind reports whether requests of kind are settled by a signed
// message rather than a transaction.
func SignatureKind(kind Kind) bool {
	return kind == KindBalance || kind == KindAuthorization
}

// TransactionKind reports whether requests of kind are settled by a
// transaction hash.
func TransactionKind(kind Kind) bool {
	return kind == KindFunctionCall || kind == KindLock
}

func (b *Base) validate() error {
	if b.Chain.ChainID <= 0 {
		return validationError("chain id must be positive, got %d", b.Chain.ChainID)
	}
	if err := optionalAddress("requested wallet", b.RequestedWallet); err != nil {
		return err
	}
	if err := optionalAddress("actual wallet", b.ActualWallet); err != nil {
		return err
	}
	if len(b.ArbitraryData) > 0 && !json.Valid(b.ArbitraryData) {
		return validationError("arbitrary data is not valid json")
	}
	return nil
}

func (r *BalanceRequest) Validate() error {
	if err := r.Base.validate(); err != nil {
		return err
	}
	switch r.AssetType {
	case AssetNative:
		if r.TokenAddress != "" {
			return validationError("token address %s given for asset type %s", r.TokenAddress, AssetNative)
		}
	case AssetToken:
		return requiredAddress("token address", r.TokenAddress)
	case "":
		return optionalAddress("token address", r.TokenAddress)
	default:
		return validationError("unknown asset type %q", r.AssetType)
	}
	return nil
}

// native reports whether the balance is read with eth_getBalance.
func (r *BalanceRequest) native() bool {
	return r.AssetType == AssetNative || (r.AssetType == "" && r.TokenAddress == "")
}

func (r *AuthorizationRequest) Validate() error {
	return r.Base.validate()
}

func (c *ContractCall) validate() error {
	if err := requiredAddress("contract address", c.ContractAddress); err != nil {
		return err
	}
	if c.Decorator != nil && c.DecoratorID != nil && c.Decorator.ID != *c.DecoratorID {
		return validationError("decorator %s does not match decorator id %s", c.Decorator.ID, *c.DecoratorID)
	}
	_, err := c.callData()
	return err
}

// function resolves the decorator function of the call, nil without a
// decorator.
func (c *ContractCall) function() (*contract.ContractFunction, error) {
	if c.Decorator == nil {
		return nil, nil
	}
	fn, ok := c.Decorator.Function(c.Function, c.Params...)
	if !ok {
		return nil, validationError("function %q not found in decorator %s", c.Function, c.Decorator.Name)
	}
	return fn, nil
}

func (c *ContractCall) callData() ([]byte, error) {
	fn, err := c.function()
	if err != nil {
		return nil, err
	}
	if fn != nil {
		return contract.BuildCallData(*fn, c.Params)
	}
	if !strings.Contains(c.Function, "(") {
		return nil, validationError("function %q needs a decorator or a full signature", c.Function)
	}
	return contract.BuildCallDataFromSignature(c.Function, c.Params)
}

func (r *FunctionCallRequest) Validate() error {
	if err := r.Base.validate(); err != nil {
		return err
	}
	if _, err := parseAmount("value", r.Value, true); err != nil {
		return err
	}
	return r.ContractCall.validate()
}

func (r *ReadonlyCallRequest) Validate() error {
	if err := r.Base.validate(); err != nil {
		return err
	}
	return r.ContractCall.validate()
}

func (r *LockRequest) Validate() error {
	if err := r.Base.validate(); err != nil {
		return err
	}
	if err := requiredAddress("lock address", r.LockAddress); err != nil {
		return err
	}
	if err := optionalAddress("token address", r.TokenAddress); err != nil {
		return err
	}
	amount, err := parseAmount("amount", r.Amount, false)
	if err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return validationError("amount must be positive")
	}
	return nil
}

func requiredAddress(field, address string) error {
	if address == "" {
		return validationError("%s is required", field)
	}
	return optionalAddress(field, address)
}

func optionalAddress(field, address string) error {
	if address != "" && !common.IsHexAddress(address) {
		return validationError("%s %q is not an address", field, address)
	}
	return nil
}

// parseAmount parses a non-negative decimal amount. An empty string is zero
// when allowEmpty is set.
func parseAmount(field, amount string, allowEmpty bool) (*big.Int, error) {
	if amount == "" && allowEmpty {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(amount, 10)
	if !ok || n.Sign() < 0 {
		return nil, validationError("%s %q is not a non-negative decimal integer", field, amount)
	}
	return n, nil
}
