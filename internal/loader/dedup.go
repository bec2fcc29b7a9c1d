package loader

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Tracker enforces at-most-one emitted record per canonical cell identifier
// within a run. Membership is kept in a compressed bitmap rather than a hash
// set: the canonical grid is fixed at under 2^32 cells, so identifiers fit
// in uint32 and memory stays bounded regardless of how dense the raster is.
//
// A Tracker is owned by exactly one loader run and is discarded with it.
type Tracker struct {
	seen *roaring.Bitmap
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{seen: roaring.New()}
}

// Admit records the identifier and reports whether it was seen for the
// first time. First occurrence wins; later occurrences are the caller's
// duplicates to count and drop.
func (t *Tracker) Admit(cellID int64) bool {
	return t.seen.CheckedAdd(uint32(cellID))
}

// Cardinality returns the number of distinct identifiers admitted.
func (t *Tracker) Cardinality() uint64 {
	return t.seen.GetCardinality()
}
