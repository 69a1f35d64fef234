package canvas

// ApplyTransaction applies one transaction's diffs to a materialized view and
// returns the resulting view. When reverse is true each diff is first mapped
// through its inverse; diff order within the transaction is kept, which is
// valid because diffs inside one transaction target independent ids.
//
// ApplyTransaction never fails: updates and deletes aimed at ids that are not
// present degrade to no-ops, so replay stays total even over stale or
// partially invalid logs. The returned view is deduplicated by id with later
// entries winning.
func ApplyTransaction(data Data, tx Transaction, reverse bool) Data {
	return Data{
		Nodes: applyDiffs(data.Nodes, tx.NodeDiffs, reverse, mergeNode),
		Edges: applyDiffs(data.Edges, tx.EdgeDiffs, reverse, mergeEdge),
	}
}

func applyDiffs[T Object](items []T, diffs []Diff[T], reverse bool, merge func(T, T) T) []T {
	out := make([]T, len(items))
	copy(out, items)

	for _, d := range diffs {
		if reverse {
			d = d.Reverse()
		}
		switch d.Type {
		case DiffAdd:
			if d.To == nil {
				continue
			}
			out = append(out, *d.To)
		case DiffUpdate:
			if d.To == nil {
				continue
			}
			for i := range out {
				if out[i].ObjectID() == d.ID {
					out[i] = merge(out[i], *d.To)
					break
				}
			}
		case DiffDelete:
			for i := range out {
				if out[i].ObjectID() == d.ID {
					out = append(out[:i], out[i+1:]...)
					break
				}
			}
		}
	}

	return dedupeByID(out)
}

// dedupeByID keeps exactly one object per id. The last occurrence in array
// order wins, placed at the position of the first occurrence so the overall
// order stays stable.
func dedupeByID[T Object](items []T) []T {
	index := make(map[string]int, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		id := item.ObjectID()
		if at, ok := index[id]; ok {
			out[at] = item
			continue
		}
		index[id] = len(out)
		out = append(out, item)
	}
	return out
}

// mergeNode merges a patch into a base node field by field. The id never
// changes. Scalar fields are replaced when the patch sets them, the position
// is replaced wholesale, and the opaque data payload is merged recursively
// with arrays replaced rather than concatenated.
func mergeNode(base, patch Node) Node {
	out := base
	if patch.ParentID != "" {
		out.ParentID = patch.ParentID
	}
	if patch.Kind != "" {
		out.Kind = patch.Kind
	}
	if patch.Position != nil {
		position := *patch.Position
		out.Position = &position
	}
	out.Data = mergeValues(base.Data, patch.Data)
	return out
}

// mergeEdge merges a patch into a base edge field by field, same rules as
// mergeNode.
func mergeEdge(base, patch Edge) Edge {
	out := base
	if patch.Source != "" {
		out.Source = patch.Source
	}
	if patch.Target != "" {
		out.Target = patch.Target
	}
	if patch.Kind != "" {
		out.Kind = patch.Kind
	}
	out.Data = mergeValues(base.Data, patch.Data)
	return out
}

// mergeValues merges patch into base key by key. Nested maps merge
// recursively; every other value, arrays included, replaces the base value
// wholesale. Arrays replacing rather than appending is what keeps repeated
// updates from growing payloads without bound.
func mergeValues(base, patch map[string]any) map[string]any {
	if patch == nil {
		return base
	}
	if base == nil {
		base = map[string]any{}
	}
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		patchMap, patchIsMap := v.(map[string]any)
		baseMap, baseIsMap := out[k].(map[string]any)
		if patchIsMap && baseIsMap {
			out[k] = mergeValues(baseMap, patchMap)
			continue
		}
		out[k] = v
	}
	return out
}
