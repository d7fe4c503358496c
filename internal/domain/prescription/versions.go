package prescription

import "sort"

// BuildVersionIndex derives the version history of a prescription from its
// flat item set: distinct batch numbers, newest first, each annotated with
// its item count and the batch's write timestamp. The index is recomputed
// from the items on every call; it holds no state of its own.
func BuildVersionIndex(items []*PrescriptionItem) []Version {
	byBatch := make(map[int64]*Version)
	for _, it := range items {
		v, ok := byBatch[it.BatchNo]
		if !ok {
			v = &Version{BatchNo: it.BatchNo, CreatedAt: it.CreatedAt}
			byBatch[it.BatchNo] = v
		}
		v.ItemCount++
		if it.CreatedAt.Before(v.CreatedAt) {
			v.CreatedAt = it.CreatedAt
		}
	}

	versions := make([]Version, 0, len(byBatch))
	for _, v := range byBatch {
		versions = append(versions, *v)
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].BatchNo > versions[j].BatchNo
	})
	return versions
}
