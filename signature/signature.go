package signature

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const signatureLength = 65

// Error reports a signature that cannot be turned into an address.
type Error struct {
	msg string
	err error
}

func (e *Error) Error() string {
	if e.err != nil {
		return "SIGNATURE_INVALID: " + e.msg + ": " + e.err.Error()
	}
	return "SIGNATURE_INVALID: " + e.msg
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) Kind() string {
	return "SIGNATURE_INVALID"
}

// RecoverSigner recovers the address that signed message with the personal
// message prefix. The signature is the 65 byte r ‖ s ‖ v in hex, v either
// 0/1 or 27/28.
func RecoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(strings.TrimSpace(signature))
	if err != nil {
		return common.Address{}, &Error{msg: "signature is not hex", err: err}
	}
	if len(sig) != signatureLength {
		return common.Address{}, &Error{msg: fmt.Sprintf("signature has %d bytes, expected %d", len(sig), signatureLength)}
	}

	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, &Error{msg: fmt.Sprintf("invalid recovery id %d", sig[crypto.RecoveryIDOffset])}
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, &Error{msg: "signature recovery failed", err: err}
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify reports whether message was signed by expected. The address is
// compared checksum agnostic; an unrecoverable signature does not verify.
func Verify(expected, message, signature string) bool {
	signer, err := RecoverSigner(message, signature)
	if err != nil {
		return false
	}
	return SameAddress(signer.Hex(), expected)
}

// SameAddress compares two hex addresses ignoring case.
func SameAddress(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if !common.IsHexAddress(a) || !common.IsHexAddress(b) {
		return false
	}
	return common.HexToAddress(a) == common.HexToAddress(b)
}

func AuthorizationMessage(id string) string {
	return "Authorization message ID to sign: " + id
}

func VerificationMessage(id string) string {
	return "Verification message ID to sign: " + id
}

// LoginMessage is the message a wallet signs to log in. The timestamp is
// rendered in UTC with second precision.
func LoginMessage(wallet, id string, ts time.Time) string {
	return "Welcome!\nPlease sign this message to verify that you are the owner of address: " + wallet +
		"\nID to sign: " + id + ", timestamp: " + ts.UTC().Format(time.RFC3339)
}
