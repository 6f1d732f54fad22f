package contract

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"math/big"

	"contract-engine/abi"
	"contract-engine/chain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

type ArgumentType string

const (
	ArgumentValue ArgumentType = "VALUE"
	ArgumentHash  ArgumentType = "HASH"
)

// DecodedEvent is a log matched against a decorator event. Arguments follow
// the declaration order of the event parameters.
type DecodedEvent struct {
	Signature string          `json:"signature"`
	Arguments []EventArgument `json:"arguments"`
}

// EventArgument holds either a decoded value or, for indexed parameters
// stored as a keccak256 hash, only that hash.
type EventArgument struct {
	Name  string          `json:"name"`
	Type  ArgumentType    `json:"type"`
	Value json.RawMessage `json:"value"`
	Hash  *string         `json:"hash"`
}

type compiledEvent struct {
	signature string
	params    []abi.Parameter
	indexed   []bool
	topics    int
	data      []abi.Parameter
}

// EventDecoder matches logs against the events of one decorator.
type EventDecoder struct {
	events map[common.Hash][]compiledEvent
}

func NewEventDecoder(d *ContractDecorator) (*EventDecoder, error) {
	dec := &EventDecoder{events: make(map[common.Hash][]compiledEvent)}

	for _, e := range d.Events {
		params, err := e.parameters()
		if err != nil {
			return nil, errors.Wrapf(err, "event %s", e.Name)
		}
		signature, err := canonicalSignature(e.Name, e.Signature, params)
		if err != nil {
			return nil, errors.Wrapf(err, "event %s", e.Name)
		}

		ce := compiledEvent{
			signature: signature,
			params:    params,
			indexed:   make([]bool, len(params)),
			topics:    1,
		}
		for i, p := range e.Inputs {
			ce.indexed[i] = p.Indexed
			if p.Indexed {
				ce.topics++
			} else {
				ce.data = append(ce.data, params[i])
			}
		}
		if ce.topics > 4 {
			return nil, abi.NewError(abi.UnsupportedType, "event %s has more than 3 indexed parameters", signature)
		}

		topic := abi.SignatureHash(signature)
		dec.events[topic] = append(dec.events[topic], ce)
	}
	return dec, nil
}

// DecodeLogs decodes every log matching an event of the decorator. Logs
// without a matching selector are skipped. A matching log that cannot be
// decoded is reported in the returned error, the other logs are still
// decoded.
func (dec *EventDecoder) DecodeLogs(logs []chain.Log) ([]DecodedEvent, error) {
	out := []DecodedEvent{}
	var errs []error

	for i := range logs {
		event, ok, err := dec.DecodeLog(&logs[i])
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "log %d", logs[i].Index))
			continue
		}
		if ok {
			out = append(out, *event)
		}
	}
	return out, stderrors.Join(errs...)
}

// DecodeLog decodes a single log, reporting false when it matches no event.
func (dec *EventDecoder) DecodeLog(log *chain.Log) (*DecodedEvent, bool, error) {
	if len(log.Topics) == 0 {
		return nil, false, nil
	}
	candidates, ok := dec.events[log.Topics[0]]
	if !ok {
		return nil, false, nil
	}

	for _, ce := range candidates {
		if ce.topics == len(log.Topics) {
			event, err := ce.decode(log)
			return event, true, err
		}
	}
	return nil, true, abi.NewError(
		abi.MalformedData, "log of %s has %d topics, expected %d", candidates[0].signature, len(log.Topics), candidates[0].topics,
	)
}

func (ce compiledEvent) decode(log *chain.Log) (*DecodedEvent, error) {
	values, err := abi.Decode(ce.data, log.Data)
	if err != nil {
		return nil, err
	}

	event := &DecodedEvent{Signature: ce.signature, Arguments: make([]EventArgument, len(ce.params))}
	topic, data := 1, 0
	for i, p := range ce.params {
		arg := EventArgument{Name: p.Name}

		switch {
		case !ce.indexed[i]:
			arg.Type = ArgumentValue
			arg.Value = values[data]
			data++

		case p.Hashed():
			hash := log.Topics[topic].Hex()
			arg.Type = ArgumentHash
			arg.Hash = &hash
			topic++

		default:
			value, err := abi.DecodeValue(p, log.Topics[topic].Bytes())
			if err != nil {
				return nil, err
			}
			arg.Type = ArgumentValue
			arg.Value = value
			topic++
		}
		event.Arguments[i] = arg
	}
	return event, nil
}

// LogFilterer is the part of a chain endpoint needed to fetch logs.
type LogFilterer interface {
	FilterLogs(ctx context.Context, address common.Address, from, to *big.Int) ([]chain.Log, error)
}

// FetchEvents reads the logs of address in [from, to] and decodes them
// against the decorator.
func FetchEvents(
	ctx context.Context, filterer LogFilterer, d *ContractDecorator, address common.Address, from, to *big.Int,
) ([]DecodedEvent, error) {
	dec, err := NewEventDecoder(d)
	if err != nil {
		return nil, err
	}

	logs, err := filterer.FilterLogs(ctx, address, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "FetchEvents")
	}
	return dec.DecodeLogs(logs)
}
