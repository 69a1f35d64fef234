package store

import "time"

// Canvas is the metadata row for one canvas. The state itself (snapshot plus
// transaction log) lives in object storage under StateKey; Version is the
// engine's base-snapshot token and Revision is the store's swap counter,
// bumped on every state write so concurrent writers can be detected with a
// compare-and-swap.
type Canvas struct {
	ID        string
	Title     string
	Version   string
	Revision  int64
	StateKey  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
