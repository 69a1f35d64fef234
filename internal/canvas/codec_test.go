package canvas

import "testing"

func TestStateRoundTripKeepsLogOrder(t *testing.T) {
	state := NewEmptyState()
	state = UpdateState(state, []Transaction{
		{TxID: "tx1", CreatedAt: 10, NodeDiffs: []Diff[Node]{AddDiff(Node{ID: "n1"})}},
		{TxID: "tx2", CreatedAt: 20, NodeDiffs: []Diff[Node]{{Type: DiffUpdate, ID: "n1", To: &Node{ID: "n1", Kind: "note"}}}},
		{TxID: "tx3", CreatedAt: 30, NodeDiffs: []Diff[Node]{{Type: DiffDelete, ID: "n1"}}},
	})

	payload, err := EncodeState(state)
	if err != nil {
		t.Fatalf("EncodeState failed: %v", err)
	}
	decoded, err := DecodeState(payload)
	if err != nil {
		t.Fatalf("DecodeState failed: %v", err)
	}

	if len(decoded.Transactions) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(decoded.Transactions))
	}
	for i, want := range []string{"tx1", "tx2", "tx3"} {
		if decoded.Transactions[i].TxID != want {
			t.Errorf("log order changed at %d: expected %s, got %s", i, want, decoded.Transactions[i].TxID)
		}
	}

	// replay of the decoded state must match replay of the original
	before := DataFromState(state)
	after := DataFromState(decoded)
	if len(before.Nodes) != len(after.Nodes) || len(before.Edges) != len(after.Edges) {
		t.Errorf("replay diverged across serialization: %+v vs %+v", before, after)
	}
}

func TestDecodeStateNormalizesNilSlices(t *testing.T) {
	decoded, err := DecodeState([]byte(`{"version":"v1"}`))
	if err != nil {
		t.Fatalf("DecodeState failed: %v", err)
	}
	if decoded.Nodes == nil || decoded.Edges == nil || decoded.Transactions == nil {
		t.Errorf("expected nil slices normalized, got %+v", decoded)
	}
}

func TestDecodeStateRejectsGarbage(t *testing.T) {
	if _, err := DecodeState([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}
