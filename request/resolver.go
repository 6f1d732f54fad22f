package request

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"time"

	"contract-engine/abi"
	"contract-engine/chain"
	"contract-engine/contract"
	"contract-engine/logger"
	"contract-engine/signature"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
)

// Response is the resolved view of a request. It is recomputed from chain
// state on every resolution and never stored as the source of truth.
type Response struct {
	ID            uuid.UUID               `json:"id"`
	Kind          Kind                    `json:"kind"`
	Status        Status                  `json:"status"`
	Reason        string                  `json:"reason,omitempty"`
	ChainID       int64                   `json:"chainId"`
	Wallet        string                  `json:"wallet,omitempty"`
	MessageToSign string                  `json:"messageToSign,omitempty"`
	TxHash        string                  `json:"txHash,omitempty"`
	BlockNumber   *uint64                 `json:"blockNumber,omitempty"`
	Balance       string                  `json:"balance,omitempty"`
	Outputs       []abi.TypedValue        `json:"outputs,omitempty"`
	Events        []contract.DecodedEvent `json:"events,omitempty"`
	ArbitraryData json.RawMessage         `json:"arbitraryData,omitempty"`
	ScreenConfig  ScreenConfig            `json:"screenConfig"`
	RedirectURL   string                  `json:"redirectUrl,omitempty"`
	ResolvedAt    time.Time               `json:"resolvedAt"`
}

// EndpointResolver selects the chain connection of a request.
type EndpointResolver interface {
	Endpoint(ctx context.Context, spec chain.ChainSpec) (*chain.Endpoint, error)
}

// Resolver computes request status from live chain data.
type Resolver struct {
	endpoints EndpointResolver
	now       func() time.Time
}

func NewResolver(endpoints EndpointResolver) *Resolver {
	return &Resolver{endpoints: endpoints, now: time.Now}
}

// MessageToSign is the exact text a wallet signs to settle a signature
// request.
func MessageToSign(r Request) string {
	switch r := r.(type) {
	case *AuthorizationRequest:
		if r.MessageToSign != "" {
			return r.MessageToSign
		}
		return signature.AuthorizationMessage(r.ID.String())
	case *BalanceRequest:
		return signature.VerificationMessage(r.ID.String())
	default:
		return ""
	}
}

// Resolve computes the current status of r. Chain outages keep the request
// PENDING; the returned error is reserved for requests that can never
// resolve, such as an unsupported chain.
func (res *Resolver) Resolve(ctx context.Context, r Request) (*Response, error) {
	b := r.base()
	resp := &Response{
		ID:            b.ID,
		Kind:          r.Kind(),
		Status:        StatusPending,
		ChainID:       b.Chain.ChainID,
		TxHash:        b.TxHash,
		ArbitraryData: b.ArbitraryData,
		ScreenConfig:  b.ScreenConfig,
		MessageToSign: MessageToSign(r),
		ResolvedAt:    res.now().UTC(),
	}

	var err error
	switch r := r.(type) {
	case *BalanceRequest:
		err = res.resolveBalance(ctx, r, resp)
	case *AuthorizationRequest:
		res.resolveSignature(r, resp)
	case *FunctionCallRequest:
		err = res.resolveFunctionCall(ctx, r, resp)
	case *ReadonlyCallRequest:
		err = res.resolveReadonlyCall(ctx, r, resp)
	case *LockRequest:
		err = res.resolveLock(ctx, r, resp)
	}

	if errors.Is(err, chain.ErrUnreachable) {
		logger.Warn("request %s stays pending: %v", b.ID, err)
		resp.Status = StatusPending
		resp.Reason = err.Error()
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// resolveSignature settles a signature request from its signed message.
// It reports whether the request succeeded.
func (res *Resolver) resolveSignature(r Request, resp *Response) bool {
	b := r.base()
	if b.SignedMessage == "" {
		resp.Reason = "waiting for signed message"
		return false
	}

	signer, err := signature.RecoverSigner(resp.MessageToSign, b.SignedMessage)
	if err != nil {
		fail(resp, err.Error())
		return false
	}
	resp.Wallet = signer.Hex()

	if !walletMatches(signer, b) {
		fail(resp, "message was signed by "+signer.Hex()+", not the requested wallet")
		return false
	}
	resp.Status = StatusSuccess
	return true
}

func (res *Resolver) resolveBalance(ctx context.Context, r *BalanceRequest, resp *Response) error {
	if !res.resolveSignature(r, resp) {
		return nil
	}

	e, err := res.endpoints.Endpoint(ctx, r.Chain)
	if err != nil {
		return err
	}

	wallet := common.HexToAddress(resp.Wallet)
	var block *big.Int
	if r.BlockNumber != nil {
		block = new(big.Int).SetUint64(*r.BlockNumber)
		resp.BlockNumber = r.BlockNumber
	}

	var balance *big.Int
	if r.native() {
		balance, err = e.BalanceAt(ctx, wallet, block)
	} else {
		balance, err = tokenBalance(ctx, e, common.HexToAddress(r.TokenAddress), wallet, block)
	}
	if chain.IsReverted(err) {
		// ownership is proven; a token without balanceOf only loses the balance
		resp.Reason = "balance read reverted: " + err.Error()
		return nil
	}
	if err != nil {
		return err
	}
	resp.Balance = balance.String()
	return nil
}

func tokenBalance(ctx context.Context, e *chain.Endpoint, token, wallet common.Address, block *big.Int) (*big.Int, error) {
	data, err := contract.BuildCallDataFromSignature(
		erc20BalanceOf,
		[]abi.TypedValue{{Type: "address", Value: json.RawMessage(`"` + wallet.Hex() + `"`)}},
	)
	if err != nil {
		return nil, err
	}
	out, err := e.Call(ctx, chain.CallMsg{To: token, Data: data}, block)
	if err != nil {
		return nil, err
	}
	if len(out) < common.HashLength {
		return nil, abi.NewError(abi.MalformedData, "balanceOf returned %d bytes", len(out))
	}
	return new(big.Int).SetBytes(out[:common.HashLength]), nil
}

func (res *Resolver) resolveReadonlyCall(ctx context.Context, r *ReadonlyCallRequest, resp *Response) error {
	data, err := r.callData()
	if err != nil {
		return err
	}
	fn, err := r.function()
	if err != nil {
		return err
	}

	e, err := res.endpoints.Endpoint(ctx, r.Chain)
	if err != nil {
		return err
	}

	msg := chain.CallMsg{To: common.HexToAddress(r.ContractAddress), Data: data}
	if r.RequestedWallet != "" {
		from := common.HexToAddress(r.RequestedWallet)
		msg.From = &from
	}
	var block *big.Int
	if r.BlockNumber != nil {
		block = new(big.Int).SetUint64(*r.BlockNumber)
		resp.BlockNumber = r.BlockNumber
	}

	out, err := e.Call(ctx, msg, block)
	if chain.IsReverted(err) {
		fail(resp, err.Error())
		return nil
	}
	if err != nil {
		return err
	}

	if fn == nil {
		resp.Outputs = []abi.TypedValue{{Type: "bytes", Value: json.RawMessage(`"` + hexutil.Encode(out) + `"`)}}
	} else {
		resp.Outputs, err = contract.DecodeOutputs(*fn, out)
		if err != nil {
			fail(resp, err.Error())
			return nil
		}
	}
	resp.Status = StatusSuccess
	return nil
}

func (res *Resolver) resolveFunctionCall(ctx context.Context, r *FunctionCallRequest, resp *Response) error {
	data, err := r.callData()
	if err != nil {
		return err
	}
	value, err := parseAmount("value", r.Value, true)
	if err != nil {
		return err
	}
	expected := expectedTx{to: common.HexToAddress(r.ContractAddress), data: data, value: value}

	receipt, ok, err := res.resolveTransaction(ctx, r, expected, resp)
	if err != nil || !ok || r.Decorator == nil {
		return err
	}
	resp.Events = decodeEvents(r.ID, r.Decorator, expected.to, receipt)
	return nil
}

func (res *Resolver) resolveLock(ctx context.Context, r *LockRequest, resp *Response) error {
	amount, err := parseAmount("amount", r.Amount, false)
	if err != nil {
		return err
	}
	lockAddress := common.HexToAddress(r.LockAddress)

	expected := expectedTx{to: lockAddress, value: amount}
	if r.TokenAddress != "" {
		data, err := contract.BuildCallDataFromSignature(erc20Transfer, []abi.TypedValue{
			{Type: "address", Value: json.RawMessage(`"` + lockAddress.Hex() + `"`)},
			{Type: "uint256", Value: json.RawMessage(`"` + amount.String() + `"`)},
		})
		if err != nil {
			return err
		}
		expected = expectedTx{to: common.HexToAddress(r.TokenAddress), data: data, value: new(big.Int)}
	}

	receipt, ok, err := res.resolveTransaction(ctx, r, expected, resp)
	if err != nil || !ok || r.TokenAddress == "" {
		return err
	}
	resp.Events = decodeEvents(r.ID, erc20Decorator, expected.to, receipt)
	return nil
}

type expectedTx struct {
	to    common.Address
	data  []byte
	value *big.Int
}

// resolveTransaction settles a transaction request. It returns the receipt
// and true when the request succeeded.
func (res *Resolver) resolveTransaction(
	ctx context.Context, r Request, expected expectedTx, resp *Response,
) (*chain.Receipt, bool, error) {
	b := r.base()
	if b.TxHash == "" {
		resp.Reason = "waiting for transaction"
		return nil, false, nil
	}

	e, err := res.endpoints.Endpoint(ctx, b.Chain)
	if err != nil {
		return nil, false, err
	}

	txHash := common.HexToHash(b.TxHash)
	receipt, err := e.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, false, err
	}
	if receipt == nil {
		resp.Reason = "transaction is not mined yet"
		return nil, false, nil
	}
	mined := receipt.BlockNumber().Uint64()
	resp.BlockNumber = &mined

	head, err := e.BlockNumber(ctx)
	if err != nil {
		return nil, false, err
	}
	if head < mined || head-mined+1 < e.Confirmations() {
		resp.Reason = "waiting for confirmations"
		return nil, false, nil
	}

	if !receipt.Succeeded() {
		fail(resp, "transaction reverted")
		return nil, false, nil
	}

	tx, err := e.TransactionByHash(ctx, txHash)
	if err != nil {
		return nil, false, err
	}
	if tx == nil {
		resp.Reason = "transaction is not available yet"
		return nil, false, nil
	}

	sender, err := tx.FromAddress()
	if err != nil {
		fail(resp, "cannot recover transaction sender: "+err.Error())
		return nil, false, nil
	}
	resp.Wallet = sender.Hex()

	if reason := mismatch(sender, b, tx, expected); reason != "" {
		fail(resp, reason)
		return nil, false, nil
	}

	resp.Status = StatusSuccess
	return receipt, true, nil
}

func mismatch(sender common.Address, b *Base, tx *chain.Transaction, expected expectedTx) string {
	switch {
	case !walletMatches(sender, b):
		return "transaction was sent by " + sender.Hex() + ", not the requested wallet"
	case tx.To() == nil || *tx.To() != expected.to:
		return "transaction recipient is not " + expected.to.Hex()
	case !bytes.Equal(tx.Data(), expected.data):
		return "transaction input does not match the requested call"
	case tx.Value().Cmp(expected.value) != 0:
		return "transaction value " + tx.Value().String() + " does not match " + expected.value.String()
	}
	return ""
}

// walletMatches reports whether observed is the requested wallet or the
// actual wallet override. A request naming neither accepts any wallet.
func walletMatches(observed common.Address, b *Base) bool {
	if b.RequestedWallet == "" && b.ActualWallet == "" {
		return true
	}
	return signature.SameAddress(observed.Hex(), b.RequestedWallet) ||
		signature.SameAddress(observed.Hex(), b.ActualWallet)
}

// decodeEvents decodes the receipt logs emitted by address. Undecodable
// logs are logged and skipped since the transaction itself succeeded.
func decodeEvents(id uuid.UUID, d *contract.ContractDecorator, address common.Address, receipt *chain.Receipt) []contract.DecodedEvent {
	dec, err := contract.NewEventDecoder(d)
	if err != nil {
		logger.Warn("request %s: cannot decode events of %s: %v", id, d.Name, err)
		return nil
	}

	var logs []chain.Log
	for _, l := range receipt.Logs() {
		if l.Address == address {
			logs = append(logs, *l)
		}
	}
	events, err := dec.DecodeLogs(logs)
	if err != nil {
		logger.Warn("request %s: %v", id, err)
	}
	return events
}

func fail(resp *Response, reason string) {
	resp.Status = StatusFailed
	resp.Reason = reason
}
