package database

import (
	"context"
	"encoding/json"

	"contract-engine/chain"
	"contract-engine/contract"
	"contract-engine/request"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxReasonLength = 1000

// Store persists requests, decorators and status snapshots with gorm.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, r request.Request) error {
	record, err := toRecord(r)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if d := decoratorOf(r); d != nil {
			if err := s.saveDecorator(ctx, tx, d); err != nil {
				return err
			}
		}
		return errors.Wrap(tx.Create(record).Error, "Create")
	})
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (request.Request, error) {
	record, err := FetchRequestRecord(ctx, s.db, id.String())
	if err != nil {
		return nil, err
	}
	return s.fromRecord(ctx, record)
}

func (s *Store) SetSignature(ctx context.Context, id uuid.UUID, actualWallet, signedMessage string) error {
	return SetOnce(ctx, s.db, id.String(), "signed_message", attachValues("signed_message", signedMessage, actualWallet))
}

func (s *Store) SetTransaction(ctx context.Context, id uuid.UUID, actualWallet, txHash string) error {
	return SetOnce(ctx, s.db, id.String(), "tx_hash", attachValues("tx_hash", txHash, actualWallet))
}

// attachValues keeps a previously attached actual wallet when none is given.
func attachValues(column, value, actualWallet string) map[string]interface{} {
	values := map[string]interface{}{column: value}
	if actualWallet != "" {
		values["actual_wallet"] = actualWallet
	}
	return values
}

// SaveDecorator stores d unless a decorator with the same id exists.
func (s *Store) SaveDecorator(ctx context.Context, d *contract.ContractDecorator) error {
	return s.saveDecorator(ctx, s.db, d)
}

func (s *Store) saveDecorator(ctx context.Context, db *gorm.DB, d *contract.ContractDecorator) error {
	definition, err := json.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "SaveDecorator")
	}
	record := &DecoratorRecord{
		ID:          d.ID.String(),
		Name:        d.Name,
		Description: d.Description,
		Definition:  datatypes.JSON(definition),
	}
	return errors.Wrap(CreateDecoratorRecord(ctx, db, record), "SaveDecorator")
}

func (s *Store) Decorator(ctx context.Context, id uuid.UUID) (*contract.ContractDecorator, error) {
	record, err := FetchDecoratorRecord(ctx, s.db, id.String())
	if err != nil {
		return nil, err
	}
	d := new(contract.ContractDecorator)
	if err := json.Unmarshal(record.Definition, d); err != nil {
		return nil, errors.Wrapf(err, "decorator %s", id)
	}
	return d, nil
}

// SaveSnapshot records the latest resolved status of a request.
func (s *Store) SaveSnapshot(ctx context.Context, resp *request.Response) error {
	encoded, err := json.Marshal(resp)
	if err != nil {
		return errors.Wrap(err, "SaveSnapshot")
	}
	reason := resp.Reason
	if len(reason) > maxReasonLength {
		reason = reason[:maxReasonLength]
	}
	return UpsertSnapshot(ctx, s.db, &StatusSnapshot{
		RequestID:   resp.ID.String(),
		Status:      string(resp.Status),
		Reason:      reason,
		Wallet:      resp.Wallet,
		BlockNumber: resp.BlockNumber,
		Response:    datatypes.JSON(encoded),
		ResolvedAt:  resp.ResolvedAt,
	})
}

func (s *Store) Snapshot(ctx context.Context, id uuid.UUID) (*StatusSnapshot, error) {
	return FetchSnapshot(ctx, s.db, id.String())
}

// Unresolved returns up to limit requests that have not reached a terminal
// status yet, oldest first.
func (s *Store) Unresolved(ctx context.Context, limit int) ([]request.Request, error) {
	records, err := FetchUnresolvedRecords(ctx, s.db, limit)
	if err != nil {
		return nil, errors.Wrap(err, "Unresolved")
	}

	requests := make([]request.Request, 0, len(records))
	for i := range records {
		r, err := s.fromRecord(ctx, &records[i])
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, nil
}

func decoratorOf(r request.Request) *contract.ContractDecorator {
	switch r := r.(type) {
	case *request.FunctionCallRequest:
		return r.Decorator
	case *request.ReadonlyCallRequest:
		return r.Decorator
	default:
		return nil
	}
}

func contractCallOf(r request.Request) *request.ContractCall {
	switch r := r.(type) {
	case *request.FunctionCallRequest:
		return &r.ContractCall
	case *request.ReadonlyCallRequest:
		return &r.ContractCall
	default:
		return nil
	}
}

func toRecord(r request.Request) (*RequestRecord, error) {
	params, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "toRecord")
	}

	b := request.Common(r)
	record := &RequestRecord{
		ID:              b.ID.String(),
		Kind:            string(r.Kind()),
		ChainID:         b.Chain.ChainID,
		CustomRPCURL:    nullable(b.Chain.CustomRPCURL),
		RequestedWallet: b.RequestedWallet,
		ActualWallet:    nullable(b.ActualWallet),
		SignedMessage:   nullable(b.SignedMessage),
		TxHash:          nullable(b.TxHash),
		Params:          datatypes.JSON(params),
		ArbitraryData:   datatypes.JSON(b.ArbitraryData),
		ScreenConfig:    datatypes.NewJSONType(b.ScreenConfig),
		RedirectURL:     b.RedirectURL,
		CreatedAt:       b.CreatedAt,
	}
	if c := contractCallOf(r); c != nil && c.DecoratorID != nil {
		record.DecoratorID = nullable(c.DecoratorID.String())
	}
	return record, nil
}

func (s *Store) fromRecord(ctx context.Context, record *RequestRecord) (request.Request, error) {
	r, err := request.New(request.Kind(record.Kind))
	if err != nil {
		return nil, errors.Wrapf(err, "request %s", record.ID)
	}
	if !isNull(record.Params) {
		if err := json.Unmarshal(record.Params, r); err != nil {
			return nil, errors.Wrapf(err, "request %s", record.ID)
		}
	}

	id, err := uuid.Parse(record.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "request %s", record.ID)
	}
	*request.Common(r) = request.Base{
		ID:              id,
		Chain:           chain.ChainSpec{ChainID: record.ChainID, CustomRPCURL: value(record.CustomRPCURL)},
		RequestedWallet: record.RequestedWallet,
		ActualWallet:    value(record.ActualWallet),
		SignedMessage:   value(record.SignedMessage),
		TxHash:          value(record.TxHash),
		ArbitraryData:   rawJSON(record.ArbitraryData),
		ScreenConfig:    record.ScreenConfig.Data(),
		RedirectURL:     record.RedirectURL,
		CreatedAt:       record.CreatedAt,
	}

	if c := contractCallOf(r); c != nil && c.DecoratorID != nil {
		c.Decorator, err = s.Decorator(ctx, *c.DecoratorID)
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

// isNull reports whether a scanned JSON column was NULL or empty.
func isNull(j datatypes.JSON) bool {
	return len(j) == 0 || string(j) == "null"
}

func rawJSON(j datatypes.JSON) json.RawMessage {
	if isNull(j) {
		return nil
	}
	return json.RawMessage(j)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
