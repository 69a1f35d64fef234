package canvas

// SortNodesByParent orders nodes so that, for every node whose parent is
// present in the set, the parent appears earlier in the output. The walk
// marks a node visited before following its parent link, which guarantees
// termination on cyclic parent chains: a cycle is cut at the node where the
// walk re-enters it, so members of a cycle come out in walk order rather
// than parent order. Dangling parent ids are tolerated; the node is emitted
// without forcing its absent parent first. The output is a permutation of
// the input, stable for acyclic inputs.
func SortNodesByParent(nodes []Node) []Node {
	byID := make(map[string]int, len(nodes))
	for i, n := range nodes {
		byID[n.ID] = i
	}

	visited := make(map[string]bool, len(nodes))
	out := make([]Node, 0, len(nodes))

	// chain collects the parent walk from each start node; appending it in
	// reverse emits ancestors first. An explicit slice instead of recursion
	// keeps pathological parent chains from exhausting the stack.
	var chain []Node
	for _, n := range nodes {
		if visited[n.ID] {
			continue
		}
		chain = chain[:0]
		current := n
		for {
			visited[current.ID] = true
			chain = append(chain, current)
			if current.ParentID == "" {
				break
			}
			at, ok := byID[current.ParentID]
			if !ok || visited[nodes[at].ID] {
				break
			}
			current = nodes[at]
		}
		for i := len(chain) - 1; i >= 0; i-- {
			out = append(out, chain[i])
		}
	}

	return out
}
