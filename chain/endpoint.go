package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"sync"
	"time"

	"contract-engine/boff"
	"contract-engine/config"
	"contract-engine/logger"

	"github.com/ava-labs/coreth/interfaces"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/singleflight"
)

// ChainSpec identifies the target of a request. A non-empty CustomRPCURL
// overrides the configured endpoint of the chain.
type ChainSpec struct {
	ChainID      int64
	CustomRPCURL string
}

type poolKey struct {
	chainID int64
	url     string
}

// Resolver picks the RPC endpoint for every request and keeps one dialed
// client per (chain id, url).
type Resolver struct {
	cfg  config.ChainConfig
	dial func(ctx context.Context, nodeURL *url.URL, chainID ChainID) (*Client, error)

	group singleflight.Group
	mu    sync.RWMutex
	pool  map[poolKey]*Client
}

func NewResolver(cfg config.ChainConfig) *Resolver {
	return &Resolver{
		cfg:  cfg,
		dial: dialAndCheck,
		pool: make(map[poolKey]*Client),
	}
}

// dialAndCheck dials the node and makes sure it serves the expected chain,
// so a misconfigured custom RPC URL cannot resolve requests of another chain.
func dialAndCheck(ctx context.Context, nodeURL *url.URL, chainID ChainID) (*Client, error) {
	client, err := DialRPCNode(nodeURL, chainID.Type())
	if err != nil {
		return nil, unreachable(err)
	}

	remote, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, unreachable(err)
	}
	if ChainIDFromBigInt(remote) != chainID {
		client.Close()
		return nil, &Error{
			Kind:   UnsupportedChain,
			Reason: fmt.Sprintf("node %s serves chain %s, expected %d", nodeURL.Redacted(), remote, chainID),
		}
	}
	return client, nil
}

// Endpoint resolves the endpoint of spec. The selection is made on every
// call; only the dialed connection is reused.
func (r *Resolver) Endpoint(ctx context.Context, spec ChainSpec) (*Endpoint, error) {
	network, known := r.cfg.Network(spec.ChainID)

	rawURL := spec.CustomRPCURL
	if rawURL == "" {
		if !known || network.NodeURL == "" {
			return nil, &Error{Kind: UnsupportedChain, Reason: fmt.Sprintf("no RPC endpoint for chain %d", spec.ChainID)}
		}
		rawURL = network.NodeURL
	}

	confirmations := config.DefaultConfirmations
	if known {
		confirmations = network.Confirmations
	}

	client, err := r.client(ctx, poolKey{chainID: spec.ChainID, url: rawURL})
	if err != nil {
		return nil, err
	}

	return &Endpoint{
		ChainID:       ChainID(spec.ChainID),
		client:        client,
		timeout:       r.cfg.Timeout(),
		confirmations: confirmations,
	}, nil
}

func (r *Resolver) client(ctx context.Context, key poolKey) (*Client, error) {
	r.mu.RLock()
	client, ok := r.pool[key]
	r.mu.RUnlock()
	if ok {
		return client, nil
	}

	nodeURL, err := url.Parse(key.url)
	if err != nil {
		return nil, &Error{Kind: UnsupportedChain, Reason: "invalid RPC URL", err: err}
	}

	v, err, _ := r.group.Do(strconv.FormatInt(key.chainID, 10)+"|"+key.url, func() (interface{}, error) {
		r.mu.RLock()
		existing, ok := r.pool[key]
		r.mu.RUnlock()
		if ok {
			return existing, nil
		}

		dialCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout())
		defer cancel()

		c, err := r.dial(dialCtx, nodeURL, ChainID(key.chainID))
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.pool[key] = c
		r.mu.Unlock()

		logger.Debug("Dialed chain %d endpoint %s", key.chainID, nodeURL.Redacted())
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Client), nil
}

// Close closes all pooled connections.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, c := range r.pool {
		c.Close()
		delete(r.pool, key)
	}
}

// Endpoint is a resolved chain connection. Every call is bounded by the
// configured timeout, transient failures are retried and the result error
// is always a classified *Error.
type Endpoint struct {
	ChainID ChainID

	client        *Client
	timeout       time.Duration
	confirmations uint64
}

// Confirmations is the number of blocks a receipt needs before it counts
// as final on this chain.
func (e *Endpoint) Confirmations() uint64 {
	return e.confirmations
}

func (e *Endpoint) BlockNumber(ctx context.Context) (uint64, error) {
	return retryCall(ctx, e, "BlockNumber", func(ctx context.Context) (uint64, error) {
		return e.client.BlockNumber(ctx)
	})
}

// Call executes a read only call at block, latest when block is nil.
func (e *Endpoint) Call(ctx context.Context, msg CallMsg, block *big.Int) ([]byte, error) {
	return retryCall(ctx, e, "Call", func(ctx context.Context) ([]byte, error) {
		return e.client.CallContract(ctx, msg, block)
	})
}

func (e *Endpoint) BalanceAt(ctx context.Context, account common.Address, block *big.Int) (*big.Int, error) {
	return retryCall(ctx, e, "BalanceAt", func(ctx context.Context) (*big.Int, error) {
		return e.client.BalanceAt(ctx, account, block)
	})
}

// TransactionReceipt returns nil and no error when the transaction is not
// mined yet.
func (e *Endpoint) TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	return retryCall(ctx, e, "TransactionReceipt", func(ctx context.Context) (*Receipt, error) {
		receipt, err := e.client.TransactionReceipt(ctx, txHash)
		if isNotFound(err) {
			return nil, nil
		}
		return receipt, err
	})
}

// TransactionByHash returns nil and no error for unknown transactions.
func (e *Endpoint) TransactionByHash(ctx context.Context, txHash common.Hash) (*Transaction, error) {
	return retryCall(ctx, e, "TransactionByHash", func(ctx context.Context) (*Transaction, error) {
		tx, _, err := e.client.TransactionByHash(ctx, txHash)
		if isNotFound(err) {
			return nil, nil
		}
		return tx, err
	})
}

// FilterLogs returns the logs emitted by address in the inclusive block
// range. A nil bound is open.
func (e *Endpoint) FilterLogs(ctx context.Context, address common.Address, from, to *big.Int) ([]Log, error) {
	q := ethereum.FilterQuery{
		FromBlock: from,
		ToBlock:   to,
		Addresses: []common.Address{address},
	}
	return retryCall(ctx, e, "FilterLogs", func(ctx context.Context) ([]Log, error) {
		return e.client.FilterLogs(ctx, q)
	})
}

// SendRawTransaction relays a signed transaction. It is not retried since
// a resubmission may be rejected as a duplicate.
func (e *Endpoint) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	hash, err := e.client.SendRawTransaction(ctx, raw)
	if err != nil {
		return common.Hash{}, classify(err)
	}
	return hash, nil
}

func retryCall[T any](ctx context.Context, e *Endpoint, name string, call func(ctx context.Context) (T, error)) (T, error) {
	v, err := boff.RetryWithMaxElapsed(ctx, func() (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		v, err := call(callCtx)
		if err == nil {
			return v, nil
		}
		if classified := classify(err); IsReverted(classified) {
			return v, boff.Permanent(classified)
		}
		return v, err
	}, name)
	if err != nil {
		var zero T
		return zero, classify(err)
	}
	return v, nil
}

func isNotFound(err error) bool {
	return err != nil && (errors.Is(err, ethereum.NotFound) || errors.Is(err, interfaces.NotFound))
}
