// Package canvas implements the versioned, transaction-based state model
// behind collaborative canvases: a base snapshot of nodes and edges plus an
// ordered transaction log, replayed deterministically into the current view
// and merged across writers with explicit conflict detection.
//
// Every operation in this package is a pure function over immutable inputs.
// Callers own concurrency: treat each State as an immutable value and swap
// merge results in atomically (the store layer does this with a
// compare-and-swap on the version token).
package canvas

import (
	"encoding/json"
	"time"

	"easel/api/internal/util"
)

// Position is a node's placement on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a graph vertex. ID is immutable once created. ParentID, when set,
// should reference another node in the same canvas; dangling references are
// tolerated by the orderer.
type Node struct {
	ID       string         `json:"id"`
	ParentID string         `json:"parentId,omitempty"`
	Kind     string         `json:"type,omitempty"`
	Position *Position      `json:"position,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Edge connects two nodes. Same identity rules as Node.
type Edge struct {
	ID     string         `json:"id"`
	Source string         `json:"source,omitempty"`
	Target string         `json:"target,omitempty"`
	Kind   string         `json:"type,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// ObjectID returns the stable identity of the node.
func (n Node) ObjectID() string { return n.ID }

// ObjectID returns the stable identity of the edge.
func (e Edge) ObjectID() string { return e.ID }

// Object constrains diff targets to the two canvas object kinds.
type Object interface {
	Node | Edge
	ObjectID() string
}

// Transaction is an atomic, ordered batch of diffs. TxID is globally unique
// per canvas and drives deduplication; CreatedAt (unix milliseconds) drives
// total ordering of the log. Revoked or deleted transactions are skipped
// during replay but stay in the log for audit and undo.
type Transaction struct {
	TxID      string       `json:"txId"`
	CreatedAt int64        `json:"createdAt"`
	NodeDiffs []Diff[Node] `json:"nodeDiffs,omitempty"`
	EdgeDiffs []Diff[Edge] `json:"edgeDiffs,omitempty"`
	Revoked   bool         `json:"revoked,omitempty"`
	Deleted   bool         `json:"deleted,omitempty"`
}

// Applies reports whether the transaction participates in replay.
func (t Transaction) Applies() bool {
	return !t.Revoked && !t.Deleted
}

// Data is the materialized view of a canvas: nodes and edges deduplicated by
// id, nodes ordered so that parents precede children.
type Data struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// State is the persisted and transmitted unit: a base snapshot, a version
// token identifying that snapshot, and the ordered transaction log on top of
// it. History is carried opaquely for round-tripping.
type State struct {
	Version      string          `json:"version"`
	Nodes        []Node          `json:"nodes"`
	Edges        []Edge          `json:"edges"`
	Transactions []Transaction   `json:"transactions"`
	History      json.RawMessage `json:"history,omitempty"`
	CreatedAt    int64           `json:"createdAt"`
	UpdatedAt    int64           `json:"updatedAt"`
}

// NewEmptyState creates a canvas state with a fresh version token, an empty
// snapshot and an empty transaction log.
func NewEmptyState() State {
	now := time.Now().UnixMilli()
	return State{
		Version:      util.NewID("ver"),
		Nodes:        []Node{},
		Edges:        []Edge{},
		Transactions: []Transaction{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
