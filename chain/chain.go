package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/url"

	avxClient "github.com/ava-labs/coreth/ethclient"
	"github.com/ava-labs/coreth/interfaces"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethClient "github.com/ethereum/go-ethereum/ethclient"

	avxTypes "github.com/ava-labs/coreth/core/types"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
)

// ChainID represents the external chain ID which identifies a particular
// blockchain network.
type ChainID int64

const (
	ChainIDFlare     ChainID = 14
	ChainIDSongbird  ChainID = 19
	ChainIDCoston    ChainID = 16
	ChainIDCoston2   ChainID = 114
	ChainIDAvalanche ChainID = 43114
	ChainIDFuji      ChainID = 43113
)

func ChainIDFromBigInt(chainID *big.Int) ChainID {
	return ChainID(chainID.Int64())
}

// ChainType is an internal type used to differentiate between different
// types of EVM-compatible chains.
type ChainType int

const (
	ChainTypeAvax ChainType = iota + 1 // Add 1 to skip 0 - avoids the zero value defaulting to Avax
	ChainTypeEth
)

// Type returns the client flavour needed to talk to the chain. Avalanche
// based networks use coreth, everything else go-ethereum.
func (id ChainID) Type() ChainType {
	switch id {
	case ChainIDFlare, ChainIDSongbird, ChainIDCoston, ChainIDCoston2, ChainIDAvalanche, ChainIDFuji:
		return ChainTypeAvax
	default:
		return ChainTypeEth
	}
}

// Log is the chain independent event log representation.
type Log = ethTypes.Log

// CallMsg describes an eth_call.
type CallMsg struct {
	From  *common.Address
	To    common.Address
	Data  []byte
	Value *big.Int
}

type Client struct {
	chain ChainType
	eth   *ethClient.Client
	avx   avxClient.Client
}

type Receipt struct {
	chain ChainType
	eth   *ethTypes.Receipt
	avx   *avxTypes.Receipt
}

type Transaction struct {
	chain ChainType
	eth   *ethTypes.Transaction
	avx   *avxTypes.Transaction
}

var errInvalidChain = errors.New("invalid chain")

func DialRPCNode(nodeURL *url.URL, chainType ChainType) (*Client, error) {
	c := &Client{chain: chainType}
	var err error

	switch c.chain {
	case ChainTypeAvax:
		c.avx, err = avxClient.Dial(nodeURL.String())
	case ChainTypeEth:
		c.eth, err = ethClient.Dial(nodeURL.String())
	default:
		return nil, errInvalidChain
	}

	return c, err
}

func (c *Client) Close() {
	switch c.chain {
	case ChainTypeAvax:
		c.avx.Close()
	case ChainTypeEth:
		c.eth.Close()
	}
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	switch c.chain {
	case ChainTypeAvax:
		return c.avx.ChainID(ctx)
	case ChainTypeEth:
		return c.eth.ChainID(ctx)
	default:
		return nil, errInvalidChain
	}
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	switch c.chain {
	case ChainTypeAvax:
		return c.avx.BlockNumber(ctx)
	case ChainTypeEth:
		return c.eth.BlockNumber(ctx)
	default:
		return 0, errInvalidChain
	}
}

// CallContract executes msg at the given block, latest when number is nil.
func (c *Client) CallContract(ctx context.Context, msg CallMsg, number *big.Int) ([]byte, error) {
	to := msg.To
	switch c.chain {
	case ChainTypeAvax:
		return c.avx.CallContract(ctx, interfaces.CallMsg{
			From: fromOrZero(msg.From), To: &to, Data: msg.Data, Value: msg.Value,
		}, number)
	case ChainTypeEth:
		return c.eth.CallContract(ctx, ethereum.CallMsg{
			From: fromOrZero(msg.From), To: &to, Data: msg.Data, Value: msg.Value,
		}, number)
	default:
		return nil, errInvalidChain
	}
}

func fromOrZero(from *common.Address) common.Address {
	if from == nil {
		return common.Address{}
	}
	return *from
}

func (c *Client) BalanceAt(ctx context.Context, account common.Address, number *big.Int) (*big.Int, error) {
	switch c.chain {
	case ChainTypeAvax:
		return c.avx.BalanceAt(ctx, account, number)
	case ChainTypeEth:
		return c.eth.BalanceAt(ctx, account, number)
	default:
		return nil, errInvalidChain
	}
}

func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	receipt := &Receipt{chain: c.chain}
	var err error
	switch c.chain {
	case ChainTypeAvax:
		receipt.avx, err = c.avx.TransactionReceipt(ctx, txHash)
	case ChainTypeEth:
		receipt.eth, err = c.eth.TransactionReceipt(ctx, txHash)
	default:
		return nil, errInvalidChain
	}

	return receipt, err
}

// TransactionByHash returns the transaction and whether it is still pending.
func (c *Client) TransactionByHash(ctx context.Context, txHash common.Hash) (*Transaction, bool, error) {
	tx := &Transaction{chain: c.chain}
	var pending bool
	var err error
	switch c.chain {
	case ChainTypeAvax:
		tx.avx, pending, err = c.avx.TransactionByHash(ctx, txHash)
	case ChainTypeEth:
		tx.eth, pending, err = c.eth.TransactionByHash(ctx, txHash)
	default:
		return nil, false, errInvalidChain
	}

	return tx, pending, err
}

func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]Log, error) {
	switch c.chain {
	case ChainTypeAvax:
		avxLogs, err := c.avx.FilterLogs(ctx, interfaces.FilterQuery(q))
		if err != nil {
			return nil, err
		}
		logs := make([]Log, len(avxLogs))
		for i, e := range avxLogs {
			logs[i] = Log(e)
		}
		return logs, nil
	case ChainTypeEth:
		return c.eth.FilterLogs(ctx, q)
	default:
		return nil, errInvalidChain
	}
}

// SendRawTransaction submits an already signed RLP or typed-envelope
// transaction and returns its hash.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	switch c.chain {
	case ChainTypeAvax:
		tx := new(avxTypes.Transaction)
		if err := tx.UnmarshalBinary(raw); err != nil {
			return common.Hash{}, fmt.Errorf("SendRawTransaction: %w", err)
		}
		return tx.Hash(), c.avx.SendTransaction(ctx, tx)
	case ChainTypeEth:
		tx := new(ethTypes.Transaction)
		if err := tx.UnmarshalBinary(raw); err != nil {
			return common.Hash{}, fmt.Errorf("SendRawTransaction: %w", err)
		}
		return tx.Hash(), c.eth.SendTransaction(ctx, tx)
	default:
		return common.Hash{}, errInvalidChain
	}
}

func (r *Receipt) Status() uint64 {
	switch r.chain {
	case ChainTypeAvax:
		return r.avx.Status
	case ChainTypeEth:
		return r.eth.Status
	default:
		return 0
	}
}

// Succeeded reports a non-reverted execution.
func (r *Receipt) Succeeded() bool {
	return r.Status() == ethTypes.ReceiptStatusSuccessful
}

func (r *Receipt) BlockNumber() *big.Int {
	switch r.chain {
	case ChainTypeAvax:
		return r.avx.BlockNumber
	case ChainTypeEth:
		return r.eth.BlockNumber
	default:
		return nil
	}
}

func (r *Receipt) TxHash() common.Hash {
	switch r.chain {
	case ChainTypeAvax:
		return r.avx.TxHash
	case ChainTypeEth:
		return r.eth.TxHash
	default:
		return common.Hash{}
	}
}

func (r *Receipt) Logs() []*Log {
	switch r.chain {
	case ChainTypeAvax:
		logs := make([]*Log, len(r.avx.Logs))
		for i, e := range r.avx.Logs {
			log := Log(*e)
			logs[i] = &log
		}
		return logs
	case ChainTypeEth:
		return r.eth.Logs
	default:
		return nil
	}
}

func (t *Transaction) Hash() common.Hash {
	switch t.chain {
	case ChainTypeAvax:
		return t.avx.Hash()
	case ChainTypeEth:
		return t.eth.Hash()
	default:
		return common.Hash{}
	}
}

func (t *Transaction) To() *common.Address {
	switch t.chain {
	case ChainTypeAvax:
		return t.avx.To()
	case ChainTypeEth:
		return t.eth.To()
	default:
		return nil
	}
}

func (t *Transaction) Data() []byte {
	switch t.chain {
	case ChainTypeAvax:
		return t.avx.Data()
	case ChainTypeEth:
		return t.eth.Data()
	default:
		return nil
	}
}

func (t *Transaction) ChainId() *big.Int {
	switch t.chain {
	case ChainTypeAvax:
		return t.avx.ChainId()
	case ChainTypeEth:
		return t.eth.ChainId()
	default:
		return nil
	}
}

func (t *Transaction) Value() *big.Int {
	switch t.chain {
	case ChainTypeAvax:
		return t.avx.Value()
	case ChainTypeEth:
		return t.eth.Value()
	default:
		return nil
	}
}

func (t *Transaction) FromAddress() (common.Address, error) {
	switch t.chain {
	case ChainTypeAvax:
		return avxTypes.Sender(avxTypes.LatestSignerForChainID(t.avx.ChainId()), t.avx)
	case ChainTypeEth:
		return ethTypes.Sender(ethTypes.LatestSignerForChainID(t.eth.ChainId()), t.eth)
	default:
		return common.Address{}, fmt.Errorf("wrong chain")
	}
}
