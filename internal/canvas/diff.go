package canvas

// DiffType discriminates the three mutation kinds.
type DiffType string

const (
	DiffAdd    DiffType = "add"
	DiffUpdate DiffType = "update"
	DiffDelete DiffType = "delete"
)

// Diff is a single add/update/delete mutation targeting one object id.
// ID is always the stable identity of the affected object. To is set for
// add and update; From is set for update and may be set for delete, where it
// lets the diff be reversed back into an add of the prior value.
type Diff[T Object] struct {
	Type DiffType `json:"type"`
	ID   string   `json:"id"`
	From *T       `json:"from,omitempty"`
	To   *T       `json:"to,omitempty"`
}

// Reverse returns the inverse mutation: an add becomes a delete of the same
// id, a delete becomes an add of its prior value, an update swaps From and
// To. Reversing a delete that carried no From yields an add with a nil To,
// which the reducer treats as a no-op.
func (d Diff[T]) Reverse() Diff[T] {
	switch d.Type {
	case DiffAdd:
		return Diff[T]{Type: DiffDelete, ID: d.ID, From: d.To}
	case DiffDelete:
		return Diff[T]{Type: DiffAdd, ID: d.ID, To: d.From}
	case DiffUpdate:
		return Diff[T]{Type: DiffUpdate, ID: d.ID, From: d.To, To: d.From}
	}
	return d
}

// AddDiff builds an add diff for the given object.
func AddDiff[T Object](item T) Diff[T] {
	return Diff[T]{Type: DiffAdd, ID: item.ObjectID(), To: &item}
}

// UpdateDiff builds an update diff carrying both the prior and the new value.
func UpdateDiff[T Object](from, to T) Diff[T] {
	return Diff[T]{Type: DiffUpdate, ID: to.ObjectID(), From: &from, To: &to}
}

// DeleteDiff builds a delete diff. Passing the prior value makes the diff
// reversible.
func DeleteDiff[T Object](item T) Diff[T] {
	return Diff[T]{Type: DiffDelete, ID: item.ObjectID(), From: &item}
}
