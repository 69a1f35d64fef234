package canvas

import "sort"

// DataFromState replays a state's transaction log over its base snapshot and
// returns the materialized view. Revoked and deleted transactions are
// skipped. The log is applied in array order; it is expected to already be
// sorted by CreatedAt (UpdateState and MergeStates keep it that way). Nodes
// in the result are ordered parent-first. The input state is never mutated,
// and replaying the same state always yields the same view.
func DataFromState(state State) Data {
	data := Data{Nodes: state.Nodes, Edges: state.Edges}
	for _, tx := range state.Transactions {
		if !tx.Applies() {
			continue
		}
		data = ApplyTransaction(data, tx, false)
	}
	data.Nodes = SortNodesByParent(dedupeByID(data.Nodes))
	data.Edges = dedupeByID(data.Edges)
	return data
}

// UpdateState merges incoming transactions into the state's log, upserting
// by TxID: a transaction resubmitted with the same TxID overwrites its
// previous entry instead of duplicating it, which makes submission
// idempotent and retry-safe. The log is re-sorted ascending by CreatedAt
// (stable, so equal timestamps keep their relative order) and UpdatedAt is
// advanced to the largest transaction timestamp seen. The input state is
// not mutated.
func UpdateState(state State, txs []Transaction) State {
	out := state
	out.Transactions = make([]Transaction, len(state.Transactions))
	copy(out.Transactions, state.Transactions)

	index := make(map[string]int, len(out.Transactions))
	for i, tx := range out.Transactions {
		index[tx.TxID] = i
	}
	for _, tx := range txs {
		if at, ok := index[tx.TxID]; ok {
			out.Transactions[at] = tx
			continue
		}
		index[tx.TxID] = len(out.Transactions)
		out.Transactions = append(out.Transactions, tx)
	}

	sortTransactions(out.Transactions)

	for _, tx := range out.Transactions {
		if tx.CreatedAt > out.UpdatedAt {
			out.UpdatedAt = tx.CreatedAt
		}
	}
	return out
}

func sortTransactions(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].CreatedAt < txs[j].CreatedAt
	})
}
