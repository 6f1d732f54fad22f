package testing

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/mux"
)

// MockChain is an in-memory JSON-RPC node serving the subset of the eth_
// namespace the engine uses.
type MockChain struct {
	chainID *big.Int

	mu        sync.RWMutex
	head      uint64
	down      bool
	txs       map[common.Hash]*types.Transaction
	txBlocks  map[common.Hash]uint64
	receipts  map[common.Hash]*types.Receipt
	logs      []*types.Log
	balances  map[common.Address][]versioned[*big.Int]
	calls     map[string][]versioned[callResult]
	submitted []*types.Transaction
}

type callResult struct {
	output []byte
	revert *string
}

// versioned is a piece of state that holds from block `from` until the next
// version of the same key.
type versioned[T any] struct {
	from  uint64
	value T
}

// setVersion inserts v at block from, keeping the history sorted and
// replacing an earlier version set at the same block.
func setVersion[T any](history []versioned[T], from uint64, v T) []versioned[T] {
	i := sort.Search(len(history), func(i int) bool { return history[i].from >= from })
	if i < len(history) && history[i].from == from {
		history[i].value = v
		return history
	}
	history = append(history, versioned[T]{})
	copy(history[i+1:], history[i:])
	history[i] = versioned[T]{from: from, value: v}
	return history
}

// versionAt returns the version in force at block n.
func versionAt[T any](history []versioned[T], n uint64) (T, bool) {
	i := sort.Search(len(history), func(i int) bool { return history[i].from > n })
	if i == 0 {
		var zero T
		return zero, false
	}
	return history[i-1].value, true
}

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

func NewMockChain(chainID int64) *MockChain {
	return &MockChain{
		chainID:  big.NewInt(chainID),
		head:     1,
		txs:      make(map[common.Hash]*types.Transaction),
		txBlocks: make(map[common.Hash]uint64),
		receipts: make(map[common.Hash]*types.Receipt),
		balances: make(map[common.Address][]versioned[*big.Int]),
		calls:    make(map[string][]versioned[callResult]),
	}
}

func (m *MockChain) ChainID() *big.Int {
	return new(big.Int).Set(m.chainID)
}

func (m *MockChain) SetHead(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.head = n
}

// SetDown makes every request fail with 503 to simulate an unreachable node.
func (m *MockChain) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

// SetBalance sets the balance of account from genesis on.
func (m *MockChain) SetBalance(account common.Address, balance *big.Int) {
	m.SetBalanceAt(account, 0, balance)
}

// SetBalanceAt changes the balance of account from block number on.
func (m *MockChain) SetBalanceAt(account common.Address, number uint64, balance *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] = setVersion(m.balances[account], number, balance)
}

// SetCallResult registers the return data of eth_call to `to` with `data`.
func (m *MockChain) SetCallResult(to common.Address, data, output []byte) {
	m.SetCallResultAt(to, data, 0, output)
}

// SetCallResultAt changes the return data of eth_call to `to` with `data`
// from block number on.
func (m *MockChain) SetCallResultAt(to common.Address, data []byte, number uint64, output []byte) {
	m.setCall(to, data, number, callResult{output: output})
}

// SetCallRevert makes eth_call to `to` with `data` revert with reason.
func (m *MockChain) SetCallRevert(to common.Address, data []byte, reason string) {
	m.setCall(to, data, 0, callResult{revert: &reason})
}

func (m *MockChain) setCall(to common.Address, data []byte, number uint64, res callResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := callKey(to, data)
	m.calls[key] = setVersion(m.calls[key], number, res)
}

// Mine includes tx in block number with the given status and logs and
// returns the receipt.
func (m *MockChain) Mine(tx *types.Transaction, number uint64, status uint64, logs ...*types.Log) *types.Receipt {
	m.mu.Lock()
	defer m.mu.Unlock()

	blockHash := crypto.Keccak256Hash([]byte("block"), new(big.Int).SetUint64(number).Bytes())
	for i, l := range logs {
		l.TxHash = tx.Hash()
		l.BlockNumber = number
		l.BlockHash = blockHash
		l.Index = uint(len(m.logs) + i)
	}

	receipt := &types.Receipt{
		Type:              tx.Type(),
		Status:            status,
		CumulativeGasUsed: tx.Gas(),
		Logs:              logs,
		TxHash:            tx.Hash(),
		GasUsed:           tx.Gas(),
		EffectiveGasPrice: tx.GasPrice(),
		BlockHash:         blockHash,
		BlockNumber:       new(big.Int).SetUint64(number),
	}
	receipt.Bloom = types.CreateBloom(types.Receipts{receipt})

	m.txs[tx.Hash()] = tx
	m.txBlocks[tx.Hash()] = number
	m.receipts[tx.Hash()] = receipt
	m.logs = append(m.logs, logs...)
	m.head = max(m.head, number)
	return receipt
}

// AddLogs adds logs that are not tied to a known transaction.
func (m *MockChain) AddLogs(logs ...*types.Log) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, logs...)
}

// Submitted returns the transactions relayed through eth_sendRawTransaction.
func (m *MockChain) Submitted() []*types.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*types.Transaction(nil), m.submitted...)
}

func (m *MockChain) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", m.serveRPC).Methods(http.MethodPost)
	return r
}

// Serve runs the mock chain on port until the server fails.
func (m *MockChain) Serve(port int) error {
	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		Handler:      m.Handler(),
	}

	fmt.Println("Mock server starting")
	return server.ListenAndServe()
}

func (m *MockChain) serveRPC(writer http.ResponseWriter, request *http.Request) {
	m.mu.RLock()
	down := m.down
	m.mu.RUnlock()
	if down {
		http.Error(writer, "node unavailable", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(request.Body)
	if err != nil {
		http.Error(writer, "Invalid request body", http.StatusBadRequest)
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(writer, "Invalid json", http.StatusBadRequest)
		return
	}

	result, rpcErr := m.dispatch(req)
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result, Error: rpcErr}

	writer.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(writer).Encode(resp); err != nil {
		fmt.Printf("Error writing response: %v\n", err)
	}
}

func (m *MockChain) dispatch(req rpcRequest) (interface{}, *rpcError) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch req.Method {
	case "eth_chainId":
		return (*hexutil.Big)(m.chainID), nil

	case "eth_blockNumber":
		return hexutil.Uint64(m.head), nil

	case "eth_getBalance":
		var account common.Address
		if err := param(req, 0, &account); err != nil {
			return nil, err
		}
		number, err := m.blockParam(req, 1)
		if err != nil {
			return nil, err
		}
		balance, ok := versionAt(m.balances[account], number)
		if !ok {
			balance = new(big.Int)
		}
		return (*hexutil.Big)(balance), nil

	case "eth_call":
		var msg struct {
			To    common.Address `json:"to"`
			Data  hexutil.Bytes  `json:"data"`
			Input hexutil.Bytes  `json:"input"`
		}
		if err := param(req, 0, &msg); err != nil {
			return nil, err
		}
		data := msg.Input
		if len(data) == 0 {
			data = msg.Data
		}
		number, err := m.blockParam(req, 1)
		if err != nil {
			return nil, err
		}
		res, ok := versionAt(m.calls[callKey(msg.To, data)], number)
		if !ok {
			return hexutil.Bytes{}, nil
		}
		if res.revert != nil {
			return nil, revertError(*res.revert)
		}
		return hexutil.Bytes(res.output), nil

	case "eth_getTransactionReceipt":
		var hash common.Hash
		if err := param(req, 0, &hash); err != nil {
			return nil, err
		}
		if receipt, ok := m.receipts[hash]; ok {
			return receipt, nil
		}
		return nil, nil

	case "eth_getTransactionByHash":
		var hash common.Hash
		if err := param(req, 0, &hash); err != nil {
			return nil, err
		}
		tx, ok := m.txs[hash]
		if !ok {
			return nil, nil
		}
		return m.rpcTransaction(tx)

	case "eth_getLogs":
		var filter struct {
			Address   []common.Address `json:"address"`
			FromBlock string           `json:"fromBlock"`
			ToBlock   string           `json:"toBlock"`
		}
		if err := param(req, 0, &filter); err != nil {
			return nil, err
		}
		return m.filterLogs(filter.Address, m.blockTag(filter.FromBlock, 0), m.blockTag(filter.ToBlock, m.head)), nil

	case "eth_sendRawTransaction":
		var raw hexutil.Bytes
		if err := param(req, 0, &raw); err != nil {
			return nil, err
		}
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(raw); err != nil {
			return nil, &rpcError{Code: -32602, Message: err.Error()}
		}
		m.submitted = append(m.submitted, tx)
		return tx.Hash(), nil

	default:
		return nil, &rpcError{Code: -32601, Message: fmt.Sprintf("the method %s does not exist/is not available", req.Method)}
	}
}

// rpcTransaction renders tx the way eth_getTransactionByHash does, with
// the block position and sender of a mined transaction.
func (m *MockChain) rpcTransaction(tx *types.Transaction) (interface{}, *rpcError) {
	encoded, err := tx.MarshalJSON()
	if err != nil {
		return nil, &rpcError{Code: -32603, Message: err.Error()}
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(encoded, &fields); err != nil {
		return nil, &rpcError{Code: -32603, Message: err.Error()}
	}

	from, err := types.Sender(types.LatestSignerForChainID(m.chainID), tx)
	if err != nil {
		return nil, &rpcError{Code: -32603, Message: err.Error()}
	}
	fields["from"] = from

	if number, ok := m.txBlocks[tx.Hash()]; ok {
		receipt := m.receipts[tx.Hash()]
		fields["blockNumber"] = hexutil.Uint64(number)
		fields["blockHash"] = receipt.BlockHash
		fields["transactionIndex"] = hexutil.Uint64(0)
	}
	return fields, nil
}

func (m *MockChain) filterLogs(addresses []common.Address, from, to uint64) []*types.Log {
	out := []*types.Log{}
	for _, l := range m.logs {
		if l.BlockNumber < from || l.BlockNumber > to {
			continue
		}
		if len(addresses) > 0 && !containsAddress(addresses, l.Address) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (m *MockChain) blockTag(tag string, fallback uint64) uint64 {
	switch tag {
	case "", "latest", "pending", "safe", "finalized":
		return fallback
	case "earliest":
		return 0
	}
	n, err := hexutil.DecodeUint64(tag)
	if err != nil {
		return fallback
	}
	return n
}

// blockParam reads the optional block tag at position i. A block beyond the
// head is unknown to the node, as on a real chain.
func (m *MockChain) blockParam(req rpcRequest, i int) (uint64, *rpcError) {
	if i >= len(req.Params) {
		return m.head, nil
	}
	var tag string
	if err := json.Unmarshal(req.Params[i], &tag); err != nil {
		return 0, &rpcError{Code: -32602, Message: err.Error()}
	}
	number := m.blockTag(tag, m.head)
	if number > m.head {
		return 0, &rpcError{Code: -32000, Message: "header not found"}
	}
	return number, nil
}

func containsAddress(addresses []common.Address, a common.Address) bool {
	for _, x := range addresses {
		if x == a {
			return true
		}
	}
	return false
}

func param(req rpcRequest, i int, v interface{}) *rpcError {
	if i >= len(req.Params) {
		return &rpcError{Code: -32602, Message: fmt.Sprintf("missing value for required argument %d", i)}
	}
	if err := json.Unmarshal(req.Params[i], v); err != nil {
		return &rpcError{Code: -32602, Message: err.Error()}
	}
	return nil
}

func callKey(to common.Address, data []byte) string {
	return strings.ToLower(to.Hex()) + hexutil.Encode(data)
}

// revertError mirrors the error geth returns for a reverted call, with the
// Error(string) payload in data.
func revertError(reason string) *rpcError {
	stringType, _ := abi.NewType("string", "", nil)
	payload, _ := abi.Arguments{{Type: stringType}}.Pack(reason)
	data := append(crypto.Keccak256([]byte("Error(string)"))[:4], payload...)

	return &rpcError{
		Code:    3,
		Message: "execution reverted: " + reason,
		Data:    hexutil.Encode(data),
	}
}
