package engine

import "github.com/Tad-z/BlockTrace-api/internal/models"

// Deduplicator tracks transfer identity keys within one aggregation run.
// The same logical transfer can surface through overlapping detection
// paths (balance deltas and parsed instructions, or the two directional
// listing queries), so admission is gated on first sight of the key.
type Deduplicator struct {
	seen map[models.TransferKey]struct{}
}

// NewDeduplicator returns an empty per-run deduplicator. It is not safe
// for concurrent use; admission happens on a single goroutine.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[models.TransferKey]struct{})}
}

// Seen records key and reports whether it was already present.
func (d *Deduplicator) Seen(key models.TransferKey) bool {
	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}

// Size returns the number of distinct transfers admitted so far.
func (d *Deduplicator) Size() int {
	return len(d.seen)
}
