package recon

import (
	"callrecon/internal"
)

type bucketKey struct {
	Category internal.Category
	Phone    string
}

// Index buckets the target dataset by (category, normalized phone) for O(1)
// candidate retrieval. Buckets preserve input order; consumed candidates are
// removed so a target row is offered to at most one origin record per run.
type Index struct {
	buckets map[bucketKey][]internal.CallRecord
}

func BuildIndex(targets []internal.CallRecord) *Index {
	idx := &Index{buckets: map[bucketKey][]internal.CallRecord{}}
	for _, rec := range targets {
		if rec.CallerPhoneNorm == "" {
			continue
		}
		key := bucketKey{Category: rec.Category, Phone: rec.CallerPhoneNorm}
		idx.buckets[key] = append(idx.buckets[key], rec)
	}
	return idx
}

func (ix *Index) Candidates(category internal.Category, phone string) []internal.CallRecord {
	return ix.buckets[bucketKey{Category: category, Phone: phone}]
}

// Consume removes a matched target from its bucket.
func (ix *Index) Consume(category internal.Category, phone, targetID string) {
	key := bucketKey{Category: category, Phone: phone}
	bucket := ix.buckets[key]
	for i, rec := range bucket {
		if rec.ExternalID == targetID {
			ix.buckets[key] = append(bucket[:i:i], bucket[i+1:]...)
			return
		}
	}
}

func (ix *Index) Size() int {
	n := 0
	for _, bucket := range ix.buckets {
		n += len(bucket)
	}
	return n
}
