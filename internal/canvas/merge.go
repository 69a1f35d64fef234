package canvas

import "fmt"

// ConflictKind categorizes merge conflicts.
type ConflictKind string

const (
	// ConflictVersion means the two states branched from different base
	// snapshots; transaction-level reconciliation is not attempted.
	ConflictVersion ConflictKind = "version"

	// ConflictNode means the same node id was mutated on both sides.
	ConflictNode ConflictKind = "node"

	// ConflictEdge means the same edge id was mutated on both sides.
	ConflictEdge ConflictKind = "edge"
)

// ConflictError reports an irreconcilable divergence between two canvas
// states. For object conflicts it carries the conflicting id and both
// candidate values so the caller can drive manual resolution; for version
// conflicts it carries both version tokens.
type ConflictError struct {
	Kind          ConflictKind
	ItemID        string
	LocalVersion  string
	RemoteVersion string
	Local         any
	Remote        any
}

func (e *ConflictError) Error() string {
	switch e.Kind {
	case ConflictVersion:
		return fmt.Sprintf("canvas version conflict: local %s, remote %s", e.LocalVersion, e.RemoteVersion)
	default:
		return fmt.Sprintf("canvas %s conflict: %s modified on both sides", e.Kind, e.ItemID)
	}
}

// MergeStates reconciles two canvas states that both descend from the same
// version. Decision order, first match wins:
//
//  1. Different version tokens fail with a version conflict.
//  2. Identical TxID sets return local unchanged.
//  3. Transactions present on one side only are checked for overlap in the
//     object ids their diffs touch. Any overlap fails with a node or edge
//     conflict naming the id and both divergent values.
//  4. Otherwise the merge is safe: local's base snapshot and version are
//     kept and the log becomes local's transactions plus remote's side-only
//     transactions, sorted ascending by CreatedAt.
//
// A successful merge never drops a transaction from either side, and a
// conflict is never resolved silently. The inputs are not mutated.
func MergeStates(local, remote State) (State, error) {
	if local.Version != remote.Version {
		return State{}, &ConflictError{
			Kind:          ConflictVersion,
			LocalVersion:  local.Version,
			RemoteVersion: remote.Version,
		}
	}

	localTxs := txIDSet(local.Transactions)
	remoteTxs := txIDSet(remote.Transactions)

	localOnly := sideOnly(local.Transactions, remoteTxs)
	remoteOnly := sideOnly(remote.Transactions, localTxs)
	if len(localOnly) == 0 && len(remoteOnly) == 0 {
		return local, nil
	}

	localTouched := touchedObjects(localOnly)
	remoteTouched := touchedObjects(remoteOnly)

	// Scan local side-only diffs in log order so that, when several ids
	// conflict, the one reported is deterministic. The id sets are compared
	// as a union across nodes and edges; the conflict kind comes from the
	// diff list the id was found in.
	for _, tx := range localOnly {
		for _, d := range tx.NodeDiffs {
			if remoteTouched.contains(d.ID) {
				return State{}, &ConflictError{
					Kind:          ConflictNode,
					ItemID:        d.ID,
					LocalVersion:  local.Version,
					RemoteVersion: remote.Version,
					Local:         localTouched.value(d.ID),
					Remote:        remoteTouched.value(d.ID),
				}
			}
		}
		for _, d := range tx.EdgeDiffs {
			if remoteTouched.contains(d.ID) {
				return State{}, &ConflictError{
					Kind:          ConflictEdge,
					ItemID:        d.ID,
					LocalVersion:  local.Version,
					RemoteVersion: remote.Version,
					Local:         localTouched.value(d.ID),
					Remote:        remoteTouched.value(d.ID),
				}
			}
		}
	}

	merged := local
	merged.Transactions = make([]Transaction, 0, len(local.Transactions)+len(remoteOnly))
	merged.Transactions = append(merged.Transactions, local.Transactions...)
	merged.Transactions = append(merged.Transactions, remoteOnly...)
	sortTransactions(merged.Transactions)
	if remote.UpdatedAt > merged.UpdatedAt {
		merged.UpdatedAt = remote.UpdatedAt
	}
	return merged, nil
}

func txIDSet(txs []Transaction) map[string]struct{} {
	set := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		set[tx.TxID] = struct{}{}
	}
	return set
}

func sideOnly(txs []Transaction, other map[string]struct{}) []Transaction {
	var only []Transaction
	for _, tx := range txs {
		if _, ok := other[tx.TxID]; !ok {
			only = append(only, tx)
		}
	}
	return only
}

type touched struct {
	nodes map[string]*Node
	edges map[string]*Edge
}

func (t touched) contains(id string) bool {
	if _, ok := t.nodes[id]; ok {
		return true
	}
	_, ok := t.edges[id]
	return ok
}

// value returns the recorded target value for an id, whichever diff list it
// came from.
func (t touched) value(id string) any {
	if n, ok := t.nodes[id]; ok {
		return n
	}
	if e, ok := t.edges[id]; ok {
		return e
	}
	return nil
}

// touchedObjects builds id -> value maps from one side's side-only diffs in
// a single pass. The recorded value is the diff's target state (To, falling
// back to From for deletes) so a conflict can surface what each side wanted
// the object to become.
func touchedObjects(txs []Transaction) touched {
	t := touched{
		nodes: make(map[string]*Node),
		edges: make(map[string]*Edge),
	}
	for _, tx := range txs {
		for _, d := range tx.NodeDiffs {
			t.nodes[d.ID] = diffValue(d)
		}
		for _, d := range tx.EdgeDiffs {
			t.edges[d.ID] = diffValue(d)
		}
	}
	return t
}

func diffValue[T Object](d Diff[T]) *T {
	if d.To != nil {
		return d.To
	}
	return d.From
}
