package request

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"contract-engine/abi"
	"contract-engine/chain"
	"contract-engine/config"
	"contract-engine/signature"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		request Request
		kind    string
	}{
		{
			name:    "native balance",
			request: &BalanceRequest{Base: testBase(), AssetType: AssetNative},
		},
		{
			name:    "token balance",
			request: &BalanceRequest{Base: testBase(), AssetType: AssetToken, TokenAddress: contractAddress},
		},
		{
			name:    "native balance with token address",
			request: &BalanceRequest{Base: testBase(), AssetType: AssetNative, TokenAddress: contractAddress},
			kind:    Validation,
		},
		{
			name:    "token balance without token address",
			request: &BalanceRequest{Base: testBase(), AssetType: AssetToken},
			kind:    Validation,
		},
		{
			name:    "unknown asset type",
			request: &BalanceRequest{Base: testBase(), AssetType: "NFT"},
			kind:    Validation,
		},
		{
			name:    "missing chain",
			request: &AuthorizationRequest{},
			kind:    Validation,
		},
		{
			name:    "bad requested wallet",
			request: &AuthorizationRequest{Base: Base{Chain: chain.ChainSpec{ChainID: 1}, RequestedWallet: "0x12"}},
			kind:    Validation,
		},
		{
			name:    "bad arbitrary data",
			request: &AuthorizationRequest{Base: Base{Chain: chain.ChainSpec{ChainID: 1}, ArbitraryData: json.RawMessage(`{`)}},
			kind:    Validation,
		},
		{
			name: "function call",
			request: &FunctionCallRequest{Base: testBase(), Value: "10", ContractCall: ContractCall{
				ContractAddress: contractAddress, Function: "setOwner(address)", Params: setOwnerParams(),
			}},
		},
		{
			name: "function call with wrong parameter type",
			request: &FunctionCallRequest{Base: testBase(), ContractCall: ContractCall{
				ContractAddress: contractAddress, Function: "setOwner(address)",
				Params: []abi.TypedValue{{Type: "uint256", Value: json.RawMessage(`"1"`)}},
			}},
			kind: string(abi.TypeMismatch),
		},
		{
			name: "function call with missing parameter",
			request: &FunctionCallRequest{Base: testBase(), ContractCall: ContractCall{
				ContractAddress: contractAddress, Decorator: ownableDecorator(), Function: "setOwner",
			}},
			kind: string(abi.ParamCountMismatch),
		},
		{
			name: "function name without decorator",
			request: &FunctionCallRequest{Base: testBase(), ContractCall: ContractCall{
				ContractAddress: contractAddress, Function: "setOwner", Params: setOwnerParams(),
			}},
			kind: Validation,
		},
		{
			name: "unknown decorator function",
			request: &ReadonlyCallRequest{Base: testBase(), ContractCall: ContractCall{
				ContractAddress: contractAddress, Decorator: ownableDecorator(), Function: "renounceOwnership",
			}},
			kind: Validation,
		},
		{
			name: "overloaded decorator function",
			request: &FunctionCallRequest{Base: testBase(), ContractCall: ContractCall{
				ContractAddress: contractAddress, Decorator: overloadedDecorator(), Function: "setOwner",
				Params: append(setOwnerParams(), abi.TypedValue{Type: "bool", Value: json.RawMessage(`true`)}),
			}},
		},
		{
			name: "negative value",
			request: &FunctionCallRequest{Base: testBase(), Value: "-1", ContractCall: ContractCall{
				ContractAddress: contractAddress, Function: "setOwner(address)", Params: setOwnerParams(),
			}},
			kind: Validation,
		},
		{
			name:    "lock",
			request: &LockRequest{Base: testBase(), LockAddress: newOwner, Amount: "5"},
		},
		{
			name:    "lock without amount",
			request: &LockRequest{Base: testBase(), LockAddress: newOwner, Amount: "0"},
			kind:    Validation,
		},
		{
			name:    "lock without address",
			request: &LockRequest{Base: testBase(), Amount: "5"},
			kind:    Validation,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.request.Validate()
			if test.kind == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, test.kind, ErrorKind(err))
		})
	}
}

func TestCreateRejectsAttachedFields(t *testing.T) {
	service := NewService(newMemStore(), nil, config.RequestsConfig{})

	_, err := service.Create(context.Background(), &AuthorizationRequest{
		Base: Base{Chain: chain.ChainSpec{ChainID: 1}, TxHash: "0x01"},
	})
	assert.True(t, errors.Is(err, ErrValidation))

	r, err := service.Create(context.Background(), &FunctionCallRequest{
		Base: testBase(),
		ContractCall: ContractCall{
			ContractAddress: contractAddress, Decorator: ownableDecorator(), Function: "setOwner", Params: setOwnerParams(),
		},
	})
	require.NoError(t, err)
	fc := r.(*FunctionCallRequest)
	assert.NotEqual(t, uuid.Nil, fc.ID)
	assert.False(t, fc.CreatedAt.IsZero())
	require.NotNil(t, fc.DecoratorID)
	assert.Equal(t, ownableDecorator().ID, *fc.DecoratorID)
}

func TestAttachValidation(t *testing.T) {
	ctx := context.Background()
	service := NewService(newMemStore(), nil, config.RequestsConfig{})

	auth, err := service.Create(ctx, &AuthorizationRequest{Base: testBase()})
	require.NoError(t, err)
	lock, err := service.Create(ctx, &LockRequest{Base: testBase(), LockAddress: newOwner, Amount: "5"})
	require.NoError(t, err)

	err = service.AttachTransaction(ctx, Common(auth).ID, "0x"+strings.Repeat("ab", 32), "")
	assert.True(t, errors.Is(err, ErrValidation))
	err = service.AttachSignature(ctx, Common(lock).ID, "0x1234", "")
	assert.True(t, errors.Is(err, ErrValidation))

	err = service.AttachTransaction(ctx, Common(lock).ID, "0x1234", "")
	assert.True(t, errors.Is(err, ErrValidation))
	err = service.AttachSignature(ctx, Common(auth).ID, " ", "")
	assert.True(t, errors.Is(err, ErrValidation))
	err = service.AttachSignature(ctx, Common(auth).ID, "0x1234", "not a wallet")
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = service.Get(ctx, uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, NotFound, ErrorKind(err))
}

func TestRedirectURL(t *testing.T) {
	id := uuid.MustParse("7d86b0ac-1f2e-4c3b-9a8d-5e6f7a8b9c0d")
	assert.Equal(t, "https://custom/7d86b0ac-1f2e-4c3b-9a8d-5e6f7a8b9c0d", RedirectURL("https://custom/${id}", id))
	assert.Equal(t, "https://custom/static", RedirectURL("https://custom/static", id))
	assert.Equal(t, "", RedirectURL("", id))

	service := NewService(newMemStore(), nil, config.RequestsConfig{LockRedirectURL: "/lock/${id}"})
	stored := &LockRequest{Base: Base{ID: id, RedirectURL: "https://custom/${id}"}}
	assert.Equal(t, "https://custom/"+id.String(), service.RedirectURL(stored))
	fallback := &LockRequest{Base: Base{ID: id}}
	assert.Equal(t, "/lock/"+id.String(), service.RedirectURL(fallback))
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, AlreadySet, ErrorKind(ErrAlreadySet))
	assert.Equal(t, string(abi.MalformedData), ErrorKind(abi.NewError(abi.MalformedData, "short")))
	assert.Equal(t, string(chain.Reverted), ErrorKind(&chain.Error{Kind: chain.Reverted, Reason: "nope"}))

	_, sigErr := signature.RecoverSigner("message", "0x12")
	assert.Equal(t, "SIGNATURE_INVALID", ErrorKind(sigErr))
	assert.Equal(t, Internal, ErrorKind(errors.New("boom")))
}

func TestNewKind(t *testing.T) {
	for _, kind := range []Kind{KindBalance, KindAuthorization, KindFunctionCall, KindReadonlyCall, KindLock} {
		r, err := New(kind)
		require.NoError(t, err)
		assert.Equal(t, kind, r.Kind())
	}
	_, err := New("transfer")
	assert.Equal(t, Validation, ErrorKind(err))
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusPending.Terminal())
}
