package chain

import (
	"context"
	"errors"
	"math/big"
	"net/http/httptest"
	"testing"
	"time"

	"contract-engine/config"
	mockchain "contract-engine/testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChainID = 1337

func newTestResolver(t *testing.T, nodeURL string) *Resolver {
	t.Helper()

	maxElapsed := config.BackoffMaxElapsedTime
	config.BackoffMaxElapsedTime = 300 * time.Millisecond
	t.Cleanup(func() { config.BackoffMaxElapsedTime = maxElapsed })

	r := NewResolver(config.ChainConfig{
		Networks:      []config.NetworkConfig{{ChainID: testChainID, NodeURL: nodeURL, Confirmations: 2}},
		TimeoutMillis: 1000,
	})
	t.Cleanup(r.Close)
	return r
}

func startMock(t *testing.T, chainID int64) (*mockchain.MockChain, string) {
	t.Helper()
	mock := mockchain.NewMockChain(chainID)
	server := httptest.NewServer(mock.Handler())
	t.Cleanup(server.Close)
	return mock, server.URL
}

func TestEndpointResolution(t *testing.T) {
	ctx := context.Background()
	defaultMock, defaultURL := startMock(t, testChainID)
	customMock, customURL := startMock(t, testChainID)
	defaultMock.SetHead(100)
	customMock.SetHead(200)

	r := newTestResolver(t, defaultURL)

	e, err := r.Endpoint(ctx, ChainSpec{ChainID: testChainID})
	require.NoError(t, err)
	head, err := e.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), head)
	assert.Equal(t, uint64(2), e.Confirmations())

	e, err = r.Endpoint(ctx, ChainSpec{ChainID: testChainID, CustomRPCURL: customURL})
	require.NoError(t, err)
	head, err = e.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), head)

	// the default endpoint is still selected for requests without override
	e, err = r.Endpoint(ctx, ChainSpec{ChainID: testChainID})
	require.NoError(t, err)
	head, err = e.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), head)

	assert.Len(t, r.pool, 2)
}

func TestEndpointUnknownChain(t *testing.T) {
	_, url := startMock(t, testChainID)
	r := newTestResolver(t, url)

	_, err := r.Endpoint(context.Background(), ChainSpec{ChainID: 5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedChain))
}

func TestEndpointChainMismatch(t *testing.T) {
	_, url := startMock(t, testChainID)
	_, otherURL := startMock(t, 99)
	r := newTestResolver(t, url)

	_, err := r.Endpoint(context.Background(), ChainSpec{ChainID: testChainID, CustomRPCURL: otherURL})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedChain))
	assert.Empty(t, r.pool)
}

func TestEndpointCustomURLUnconfiguredChain(t *testing.T) {
	_, url := startMock(t, 77)
	r := newTestResolver(t, "")

	e, err := r.Endpoint(context.Background(), ChainSpec{ChainID: 77, CustomRPCURL: url})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfirmations, e.Confirmations())
}

func TestEndpointCallErrors(t *testing.T) {
	ctx := context.Background()
	mock, url := startMock(t, testChainID)
	r := newTestResolver(t, url)

	e, err := r.Endpoint(ctx, ChainSpec{ChainID: testChainID})
	require.NoError(t, err)

	target := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	mock.SetCallRevert(target, []byte{0x01}, "Ownable: caller is not the owner")

	_, err = e.Call(ctx, CallMsg{To: target, Data: []byte{0x01}}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReverted))
	assert.True(t, IsReverted(err))

	var chainErr *Error
	require.True(t, errors.As(err, &chainErr))
	assert.Equal(t, "Ownable: caller is not the owner", chainErr.Reason)

	mock.SetDown(true)
	_, err = e.BlockNumber(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreachable))
	assert.False(t, IsReverted(err))
}

func TestEndpointTransactions(t *testing.T) {
	ctx := context.Background()
	mock, url := startMock(t, testChainID)
	r := newTestResolver(t, url)

	e, err := r.Endpoint(ctx, ChainSpec{ChainID: testChainID})
	require.NoError(t, err)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	target := common.HexToAddress("0x00000000000000000000000000000000000000dd")

	tx, err := types.SignTx(
		types.NewTransaction(3, target, big.NewInt(0), 60000, big.NewInt(1), []byte{0xca, 0xfe}),
		types.NewEIP155Signer(big.NewInt(testChainID)), key,
	)
	require.NoError(t, err)

	receipt, err := e.TransactionReceipt(ctx, tx.Hash())
	require.NoError(t, err)
	assert.Nil(t, receipt)

	missing, err := e.TransactionByHash(ctx, tx.Hash())
	require.NoError(t, err)
	assert.Nil(t, missing)

	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	hash, err := e.SendRawTransaction(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), hash)
	require.Len(t, mock.Submitted(), 1)

	log := &types.Log{Address: target, Topics: []common.Hash{{0x01}}, Data: []byte{}}
	mock.Mine(tx, 7, types.ReceiptStatusFailed, log)

	receipt, err = e.TransactionReceipt(ctx, tx.Hash())
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.False(t, receipt.Succeeded())
	assert.Equal(t, uint64(7), receipt.BlockNumber().Uint64())
	assert.Equal(t, tx.Hash(), receipt.TxHash())
	require.Len(t, receipt.Logs(), 1)

	fetched, err := e.TransactionByHash(ctx, tx.Hash())
	require.NoError(t, err)
	from, err := fetched.FromAddress()
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), from)
	assert.Equal(t, &target, fetched.To())
	assert.Equal(t, []byte{0xca, 0xfe}, fetched.Data())

	logs, err := e.FilterLogs(ctx, target, big.NewInt(0), nil)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	mock.SetBalance(target, big.NewInt(1000))
	balance, err := e.BalanceAt(ctx, target, big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance.Int64())
}

func TestChainType(t *testing.T) {
	assert.Equal(t, ChainTypeAvax, ChainIDFlare.Type())
	assert.Equal(t, ChainTypeAvax, ChainIDCoston2.Type())
	assert.Equal(t, ChainTypeEth, ChainID(1).Type())
	assert.Equal(t, ChainTypeEth, ChainID(testChainID).Type())
}

func TestAvaxEndpoint(t *testing.T) {
	ctx := context.Background()
	mock, url := startMock(t, int64(ChainIDCoston2))
	mock.SetHead(55)

	r := newTestResolver(t, "")
	e, err := r.Endpoint(ctx, ChainSpec{ChainID: int64(ChainIDCoston2), CustomRPCURL: url})
	require.NoError(t, err)

	head, err := e.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(55), head)

	receipt, err := e.TransactionReceipt(ctx, common.HexToHash("0x02"))
	require.NoError(t, err)
	assert.Nil(t, receipt)
}
