package canvas

import (
	"encoding/json"
	"fmt"
)

// EncodeState serializes a state for persistence or transmission. JSON keeps
// the transaction array in order, which replay depends on.
func EncodeState(state State) ([]byte, error) {
	payload, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode canvas state: %w", err)
	}
	return payload, nil
}

// DecodeState parses a serialized state. Nil snapshot and log slices are
// normalized to empty so callers can range over them without nil checks.
func DecodeState(payload []byte) (State, error) {
	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return State{}, fmt.Errorf("decode canvas state: %w", err)
	}
	if state.Nodes == nil {
		state.Nodes = []Node{}
	}
	if state.Edges == nil {
		state.Edges = []Edge{}
	}
	if state.Transactions == nil {
		state.Transactions = []Transaction{}
	}
	return state, nil
}
