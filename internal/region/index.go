// Package region maps gaze points onto rendered text regions and maps
// document-space highlights back onto the screen.
package region

import (
	"math"

	"github.com/verte-zerg/readaid/internal/model"
)

// ProximityThreshold is the maximum centroid distance for a match, in document units.
const ProximityThreshold = 100.0

// Index is a read-only snapshot of text regions in document order.
type Index struct {
	regions []model.TextRegion
	byID    map[string]int
}

// NewIndex builds an index, dropping regions with non-positive width or height.
func NewIndex(regions []model.TextRegion) *Index {
	idx := &Index{
		regions: make([]model.TextRegion, 0, len(regions)),
		byID:    make(map[string]int, len(regions)),
	}
	for _, r := range regions {
		if !(r.Width > 0) || !(r.Height > 0) {
			continue
		}
		if _, dup := idx.byID[r.ID]; !dup {
			idx.byID[r.ID] = len(idx.regions)
		}
		idx.regions = append(idx.regions, r)
	}
	return idx
}

// Len returns the number of indexed regions.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.regions)
}

// Lookup returns the region with the given ID.
func (idx *Index) Lookup(id string) (model.TextRegion, bool) {
	if idx == nil {
		return model.TextRegion{}, false
	}
	i, ok := idx.byID[id]
	if !ok {
		return model.TextRegion{}, false
	}
	return idx.regions[i], true
}

// Query returns the region whose centroid is nearest to p, provided it lies
// within ProximityThreshold. Equal distances resolve to the earlier region.
func (idx *Index) Query(p model.Point) (model.TextRegion, bool) {
	if idx == nil || len(idx.regions) == 0 {
		return model.TextRegion{}, false
	}
	best := -1
	bestDist := math.Inf(1)
	for i, r := range idx.regions {
		c := r.Centroid()
		d := math.Hypot(p.X-c.X, p.Y-c.Y)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best < 0 || bestDist > ProximityThreshold {
		return model.TextRegion{}, false
	}
	return idx.regions[best], true
}
