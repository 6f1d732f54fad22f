package testing

import (
	"context"
	"math/big"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockChain(t *testing.T) {
	ctx := context.Background()
	mock := NewMockChain(1337)
	server := httptest.NewServer(mock.Handler())
	defer server.Close()

	client, err := ethclient.Dial(server.URL)
	require.NoError(t, err)
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1337), chainID.Int64())

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(key.PublicKey)
	target := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	tx, err := types.SignTx(
		types.NewTransaction(0, target, big.NewInt(5), 50000, big.NewInt(1), []byte{0x01, 0x02}),
		types.NewEIP155Signer(mock.ChainID()), key,
	)
	require.NoError(t, err)

	log := &types.Log{Address: target, Topics: []common.Hash{crypto.Keccak256Hash([]byte("Ping()"))}, Data: []byte{}}
	mock.Mine(tx, 10, types.ReceiptStatusSuccessful, log)
	mock.SetHead(12)

	head, err := client.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), head)

	receipt, err := client.TransactionReceipt(ctx, tx.Hash())
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), receipt.TxHash)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, uint64(10), receipt.BlockNumber.Uint64())
	require.Len(t, receipt.Logs, 1)

	fetched, pending, err := client.TransactionByHash(ctx, tx.Hash())
	require.NoError(t, err)
	assert.False(t, pending)
	from, err := types.Sender(types.LatestSignerForChainID(fetched.ChainId()), fetched)
	require.NoError(t, err)
	assert.Equal(t, sender, from)

	logs, err := client.FilterLogs(ctx, ethereumQuery(target, 0, 20))
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	logs, err = client.FilterLogs(ctx, ethereumQuery(target, 11, 20))
	require.NoError(t, err)
	assert.Empty(t, logs)

	_, err = client.TransactionReceipt(ctx, common.HexToHash("0x01"))
	assert.Error(t, err)

	mock.SetBalance(sender, big.NewInt(42))
	balance, err := client.BalanceAt(ctx, sender, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), balance.Int64())
}

func TestMockChainCallRevert(t *testing.T) {
	ctx := context.Background()
	mock := NewMockChain(1337)
	server := httptest.NewServer(mock.Handler())
	defer server.Close()

	client, err := ethclient.Dial(server.URL)
	require.NoError(t, err)
	defer client.Close()

	target := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	mock.SetCallResult(target, []byte{0xaa}, common.LeftPadBytes([]byte{7}, 32))
	mock.SetCallRevert(target, []byte{0xbb}, "not owner")

	out, err := client.CallContract(ctx, callMsg(target, []byte{0xaa}), nil)
	require.NoError(t, err)
	assert.Equal(t, common.LeftPadBytes([]byte{7}, 32), out)

	_, err = client.CallContract(ctx, callMsg(target, []byte{0xbb}), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution reverted: not owner")

	mock.SetDown(true)
	_, err = client.BlockNumber(ctx)
	assert.Error(t, err)
}

func TestMockChainStateAtBlock(t *testing.T) {
	ctx := context.Background()
	mock := NewMockChain(1337)
	server := httptest.NewServer(mock.Handler())
	defer server.Close()

	client, err := ethclient.Dial(server.URL)
	require.NoError(t, err)
	defer client.Close()

	account := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	mock.SetHead(20)
	mock.SetBalance(account, big.NewInt(1))
	mock.SetBalanceAt(account, 15, big.NewInt(3))
	mock.SetBalanceAt(account, 10, big.NewInt(2))
	mock.SetCallResultAt(account, []byte{0xaa}, 10, []byte{0x02})

	for _, test := range []struct {
		block   *big.Int
		balance int64
		output  []byte
	}{
		{block: big.NewInt(0), balance: 1, output: []byte{}},
		{block: big.NewInt(9), balance: 1, output: []byte{}},
		{block: big.NewInt(10), balance: 2, output: []byte{0x02}},
		{block: big.NewInt(14), balance: 2, output: []byte{0x02}},
		{block: nil, balance: 3, output: []byte{0x02}},
	} {
		balance, err := client.BalanceAt(ctx, account, test.block)
		require.NoError(t, err)
		assert.Equal(t, test.balance, balance.Int64(), "block %v", test.block)

		out, err := client.CallContract(ctx, callMsg(account, []byte{0xaa}), test.block)
		require.NoError(t, err)
		assert.Equal(t, test.output, out, "block %v", test.block)
	}

	_, err = client.BalanceAt(ctx, account, big.NewInt(21))
	assert.Error(t, err)
}
