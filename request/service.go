package request

import (
	"context"
	"strings"
	"time"

	"contract-engine/config"
	"contract-engine/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Store persists requests. SetSignature and SetTransaction must be atomic
// one-shot updates that return ErrAlreadySet when the field is already set.
type Store interface {
	Create(ctx context.Context, r Request) error
	Get(ctx context.Context, id uuid.UUID) (Request, error)
	SetSignature(ctx context.Context, id uuid.UUID, actualWallet, signedMessage string) error
	SetTransaction(ctx context.Context, id uuid.UUID, actualWallet, txHash string) error
}

type Service struct {
	store    Store
	resolver *Resolver
	requests config.RequestsConfig
	now      func() time.Time
}

func NewService(store Store, resolver *Resolver, requests config.RequestsConfig) *Service {
	return &Service{store: store, resolver: resolver, requests: requests, now: time.Now}
}

// Create validates and stores a new request. A missing id or creation time
// is filled in.
func (s *Service) Create(ctx context.Context, r Request) (Request, error) {
	b := r.base()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now().UTC()
	}
	if b.ActualWallet != "" || b.SignedMessage != "" || b.TxHash != "" {
		return nil, validationError("actual wallet, signed message and transaction hash are set by attach only")
	}

	switch r := r.(type) {
	case *FunctionCallRequest:
		linkDecorator(&r.ContractCall)
	case *ReadonlyCallRequest:
		linkDecorator(&r.ContractCall)
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, errors.Wrap(err, "Create")
	}
	logger.Debug("created %s request %s", r.Kind(), b.ID)
	return r, nil
}

func linkDecorator(c *ContractCall) {
	if c.Decorator != nil && c.DecoratorID == nil {
		id := c.Decorator.ID
		c.DecoratorID = &id
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	return s.store.Get(ctx, id)
}

// AttachSignature records the signed message of a signature request and
// the wallet that claims to have signed it. It succeeds at most once.
func (s *Service) AttachSignature(ctx context.Context, id uuid.UUID, signedMessage, wallet string) error {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !SignatureKind(r.Kind()) {
		return validationError("%s requests are not settled by a signature", r.Kind())
	}
	if r.base().SignedMessage != "" {
		return alreadySet("signed message")
	}

	signedMessage = strings.TrimSpace(signedMessage)
	if signedMessage == "" {
		return validationError("signed message is empty")
	}
	wallet, err = normalizeWallet(wallet)
	if err != nil {
		return err
	}

	if err := s.store.SetSignature(ctx, id, wallet, signedMessage); err != nil {
		return err
	}
	logger.Info("signature attached to request %s", id)
	return nil
}

// AttachTransaction records the hash of the transaction that settles a
// transaction request and, optionally, the wallet expected to have sent it.
// It succeeds at most once.
func (s *Service) AttachTransaction(ctx context.Context, id uuid.UUID, txHash, wallet string) error {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !TransactionKind(r.Kind()) {
		return validationError("%s requests are not settled by a transaction", r.Kind())
	}
	if r.base().TxHash != "" {
		return alreadySet("transaction hash")
	}

	hash, err := hexutil.Decode(strings.TrimSpace(txHash))
	if err != nil || len(hash) != common.HashLength {
		return validationError("%q is not a transaction hash", txHash)
	}
	wallet, err = normalizeWallet(wallet)
	if err != nil {
		return err
	}

	if err := s.store.SetTransaction(ctx, id, wallet, common.BytesToHash(hash).Hex()); err != nil {
		return err
	}
	logger.Info("transaction %s attached to request %s", txHash, id)
	return nil
}

// normalizeWallet checksums an optional wallet address.
func normalizeWallet(wallet string) (string, error) {
	wallet = strings.TrimSpace(wallet)
	if err := optionalAddress("wallet", wallet); err != nil {
		return "", err
	}
	if wallet == "" {
		return "", nil
	}
	return common.HexToAddress(wallet).Hex(), nil
}

// Resolve loads the request and computes its current status.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID) (*Response, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.ResolveRequest(ctx, r)
}

// ResolveRequest computes the status of an already loaded request.
func (s *Service) ResolveRequest(ctx context.Context, r Request) (*Response, error) {
	resp, err := s.resolver.Resolve(ctx, r)
	if err != nil {
		return nil, err
	}
	resp.RedirectURL = s.RedirectURL(r)
	return resp, nil
}

// RedirectURL is the stored redirect URL of r, or the configured default
// for its kind, with the request id filled in.
func (s *Service) RedirectURL(r Request) string {
	b := r.base()
	template := b.RedirectURL
	if template == "" {
		template = DefaultRedirectTemplate(s.requests, r.Kind())
	}
	return RedirectURL(template, b.ID)
}
