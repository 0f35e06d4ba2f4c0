package ledger

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// MustParseABI parses a JSON ABI definition and panics on malformed input. It is meant
// for package-level event tables.
func MustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("invalid abi: %v", err))
	}
	return parsed
}

// EmitEvent encodes args as an instance of ev emitted by addr and appends it to the
// transaction's logs. Arguments are given in declaration order; indexed ones become topics.
func EmitEvent(tx *Tx, addr common.Address, ev abi.Event, args ...interface{}) error {
	if len(args) != len(ev.Inputs) {
		return fmt.Errorf("event %s: expected %d arguments, got %d", ev.Name, len(ev.Inputs), len(args))
	}

	var indexed []interface{}
	var data []interface{}
	for i, input := range ev.Inputs {
		if input.Indexed {
			indexed = append(indexed, args[i])
		} else {
			data = append(data, args[i])
		}
	}

	topics := []common.Hash{ev.ID}
	for _, arg := range indexed {
		t, err := abi.MakeTopics([]interface{}{arg})
		if err != nil {
			return fmt.Errorf("event %s: failed to encode topic: %w", ev.Name, err)
		}
		topics = append(topics, t[0][0])
	}

	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		return fmt.Errorf("event %s: failed to pack data: %w", ev.Name, err)
	}

	return tx.AddLog(&types.Log{
		Address: addr,
		Topics:  topics,
		Data:    packed,
	})
}

// DecodeEvent unpacks a log emitted as ev into a map keyed by argument name.
func DecodeEvent(ev abi.Event, l *types.Log) (map[string]interface{}, error) {
	if len(l.Topics) == 0 || l.Topics[0] != ev.ID {
		return nil, fmt.Errorf("log is not a %s event", ev.Name)
	}

	out := make(map[string]interface{})
	if err := ev.Inputs.NonIndexed().UnpackIntoMap(out, l.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack %s data: %w", ev.Name, err)
	}

	var indexed abi.Arguments
	for _, input := range ev.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if len(l.Topics)-1 != len(indexed) {
		return nil, fmt.Errorf("%s: expected %d topics, got %d", ev.Name, len(indexed)+1, len(l.Topics))
	}
	if err := abi.ParseTopicsIntoMap(out, indexed, l.Topics[1:]); err != nil {
		return nil, fmt.Errorf("failed to parse %s topics: %w", ev.Name, err)
	}

	return out, nil
}

// Events returns the logs of ev emitted by addr, in emission order.
func (r *Receipt) Events(addr common.Address, ev abi.Event) []*types.Log {
	var out []*types.Log
	for _, l := range r.Logs {
		if l.Address == addr && len(l.Topics) > 0 && l.Topics[0] == ev.ID && len(l.Topics) == countIndexed(ev)+1 {
			out = append(out, l)
		}
	}
	return out
}

// countIndexed separates same-signature events such as the ERC-20 and ERC-721 Transfer.
func countIndexed(ev abi.Event) int {
	n := 0
	for _, input := range ev.Inputs {
		if input.Indexed {
			n++
		}
	}
	return n
}
