package helpers

// Int64SliceContains reports whether the slice contains the given id.
func Int64SliceContains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// RemoveInt64s returns ids with every member of toRemove filtered out,
// preserving the original order. Ids that are absent are ignored.
func RemoveInt64s(ids []int64, toRemove []int64) []int64 {
	if len(toRemove) == 0 {
		return ids
	}
	drop := make(map[int64]struct{}, len(toRemove))
	for _, id := range toRemove {
		drop[id] = struct{}{}
	}
	out := ids[:0]
	for _, id := range ids {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
