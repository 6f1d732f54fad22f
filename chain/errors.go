package chain

import (
	"errors"
	"fmt"
	"strings"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

type ErrorKind string

const (
	Unreachable      ErrorKind = "UNREACHABLE"
	Reverted         ErrorKind = "REVERTED"
	UnsupportedChain ErrorKind = "UNSUPPORTED_CHAIN"
)

// revertErrorCode is the JSON-RPC error code geth uses for reverted calls.
const revertErrorCode = 3

// Error is a classified chain failure. Unreachable is safe to retry,
// Reverted is a terminal on-chain outcome.
type Error struct {
	Kind   ErrorKind
	Reason string
	err    error
}

func (e *Error) Error() string {
	switch {
	case e.Reason != "" && e.err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.err)
	case e.Reason != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	case e.err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is matches any chain error of the same kind when the target carries no
// reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == "" && t.err == nil && t.Kind == e.Kind
}

var (
	ErrUnreachable      = &Error{Kind: Unreachable}
	ErrReverted         = &Error{Kind: Reverted}
	ErrUnsupportedChain = &Error{Kind: UnsupportedChain}
)

func unreachable(err error) *Error {
	return &Error{Kind: Unreachable, err: err}
}

// IsReverted reports whether err (classified or raw) is an on-chain revert.
func IsReverted(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == Reverted
	}
	_, ok := revertReason(err)
	return ok
}

// classify maps a raw client error onto the chain error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	if reason, ok := revertReason(err); ok {
		return &Error{Kind: Reverted, Reason: reason, err: err}
	}
	return unreachable(err)
}

func revertReason(err error) (string, bool) {
	var rpcErr rpc.Error
	isRevertCode := errors.As(err, &rpcErr) && rpcErr.ErrorCode() == revertErrorCode
	if !isRevertCode && !strings.Contains(err.Error(), "execution reverted") {
		return "", false
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, ok := dataErr.ErrorData().(string); ok {
			if raw, decodeErr := hexutil.Decode(data); decodeErr == nil {
				if reason, unpackErr := ethabi.UnpackRevert(raw); unpackErr == nil {
					return reason, true
				}
			}
		}
	}
	return strings.TrimPrefix(strings.TrimPrefix(err.Error(), "execution reverted"), ": "), true
}
