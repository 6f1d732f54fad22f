package request

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"contract-engine/chain"
	"contract-engine/config"
	"contract-engine/contract"
	mockchain "contract-engine/testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	testChainID     = 1337
	contractAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	newOwner        = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

// memStore keeps requests in memory with the same one-shot semantics as the
// database store.
type memStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]Request
}

func newMemStore() *memStore {
	return &memStore{requests: make(map[uuid.UUID]Request)}
}

func (s *memStore) Create(_ context.Context, r Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.base().ID] = r
	return nil
}

func (s *memStore) Get(_ context.Context, id uuid.UUID) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func (s *memStore) SetSignature(_ context.Context, id uuid.UUID, wallet, signedMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.requests[id].base()
	if b.SignedMessage != "" {
		return ErrAlreadySet
	}
	b.SignedMessage = signedMessage
	if wallet != "" {
		b.ActualWallet = wallet
	}
	return nil
}

func (s *memStore) SetTransaction(_ context.Context, id uuid.UUID, wallet, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.requests[id].base()
	if b.TxHash != "" {
		return ErrAlreadySet
	}
	b.TxHash = txHash
	if wallet != "" {
		b.ActualWallet = wallet
	}
	return nil
}

type testEnv struct {
	mock    *mockchain.MockChain
	store   *memStore
	service *Service
	nonce   uint64
}

func newTestEnv(t *testing.T, confirmations uint64) *testEnv {
	t.Helper()

	maxElapsed := config.BackoffMaxElapsedTime
	config.BackoffMaxElapsedTime = 300 * time.Millisecond
	t.Cleanup(func() { config.BackoffMaxElapsedTime = maxElapsed })

	mock := mockchain.NewMockChain(testChainID)
	server := httptest.NewServer(mock.Handler())
	t.Cleanup(server.Close)

	endpoints := chain.NewResolver(config.ChainConfig{
		Networks:      []config.NetworkConfig{{ChainID: testChainID, NodeURL: server.URL, Confirmations: confirmations}},
		TimeoutMillis: 1000,
	})
	t.Cleanup(endpoints.Close)

	store := newMemStore()
	requests := config.RequestsConfig{
		FunctionCallRedirectURL: "/request-function-call/${id}/action",
		BalanceRedirectURL:      "https://wallet.example/balance",
	}
	return &testEnv{
		mock:    mock,
		store:   store,
		service: NewService(store, NewResolver(endpoints), requests),
	}
}

func testBase() Base {
	return Base{Chain: chain.ChainSpec{ChainID: testChainID}}
}

// sendTx signs a transaction from key and mines it in block number.
func (env *testEnv) sendTx(
	t *testing.T, key *ecdsa.PrivateKey, to common.Address, value *big.Int, data []byte,
	number uint64, status uint64, logs ...*types.Log,
) common.Hash {
	t.Helper()
	env.nonce++
	tx, err := types.SignNewTx(key, types.LatestSignerForChainID(big.NewInt(testChainID)), &types.LegacyTx{
		Nonce:    env.nonce,
		To:       &to,
		Value:    value,
		Gas:      100000,
		GasPrice: big.NewInt(1),
		Data:     data,
	})
	require.NoError(t, err)
	env.mock.Mine(tx, number, status, logs...)
	return tx.Hash()
}

func signMessage(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func ownableDecorator() *contract.ContractDecorator {
	address := func(name string) contract.ContractParameter {
		return contract.ContractParameter{Name: name, SolidityType: "address"}
	}
	return &contract.ContractDecorator{
		ID:   uuid.MustParse("0b0e8a4c-7f55-4a8e-b1c2-3d4e5f607182"),
		Name: "Ownable",
		Functions: []contract.ContractFunction{
			{Name: "setOwner", Signature: "setOwner(address)", Inputs: []contract.ContractParameter{address("newOwner")}},
			{Name: "owner", Signature: "owner()", Outputs: []contract.ContractParameter{address("")}, ReadOnly: true},
		},
		Events: []contract.ContractEvent{
			{
				Name: "OwnershipTransferred",
				Inputs: []contract.EventParameter{
					{ContractParameter: address("previousOwner"), Indexed: true},
					{ContractParameter: address("newOwner"), Indexed: true},
				},
			},
			{
				Name:   "OwnerSet",
				Inputs: []contract.EventParameter{{ContractParameter: address("owner")}},
			},
		},
	}
}

func addressTopic(address common.Address) common.Hash {
	return common.BytesToHash(address.Bytes())
}

// overloadedDecorator declares setOwner twice, the second overload taking a
// flag after the new owner.
func overloadedDecorator() *contract.ContractDecorator {
	d := ownableDecorator()
	d.Functions = append(d.Functions, contract.ContractFunction{
		Name: "setOwner",
		Inputs: []contract.ContractParameter{
			{Name: "newOwner", SolidityType: "address"},
			{Name: "renounce", SolidityType: "bool"},
		},
	})
	return d
}
