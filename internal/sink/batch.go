package sink

import "time"

// batch is filled by exactly one Submitter and read by the consumer once handed off.
type batch struct {
	samples []time.Duration
}

func newBatch(size int) *batch {
	return &batch{samples: make([]time.Duration, 0, size)}
}

func (b *batch) add(d time.Duration) {
	b.samples = append(b.samples, d)
}

func (b *batch) full() bool {
	return len(b.samples) == cap(b.samples)
}

func (b *batch) empty() bool {
	return len(b.samples) == 0
}
