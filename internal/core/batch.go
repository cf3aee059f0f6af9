package core

// DefaultBatchSize is the number of items committed per transaction when
// the caller does not override it.
const DefaultBatchSize = 500

// Split partitions items into batches of size, preserving order. Every
// batch except the last holds exactly size items. A size <= 0 means
// DefaultBatchSize.
func Split(items []CandidateItem, size int) []*Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}

	batches := make([]*Batch, 0, TotalBatches(len(items), size))
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, &Batch{
			Index:  len(batches),
			Items:  items[start:end:end],
			Status: BatchPending,
		})
	}
	return batches
}

// TotalBatches returns ceil(n / size).
func TotalBatches(n, size int) int {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return (n + size - 1) / size
}
