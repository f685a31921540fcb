package region

import (
	"math"

	"github.com/verte-zerg/readaid/internal/model"
)

// Mapper converts screen-space gaze samples into document coordinates and
// resolves them against the current index.
type Mapper struct {
	index *Index
	page  model.PageGeometry
}

// NewMapper returns a mapper over the given snapshot.
func NewMapper(snap model.RegionSnapshot) *Mapper {
	m := &Mapper{}
	m.Replace(snap)
	return m
}

// Replace swaps the index and page geometry wholesale.
func (m *Mapper) Replace(snap model.RegionSnapshot) {
	m.index = NewIndex(snap.Regions)
	m.page = snap.Page
}

// Index returns the current index.
func (m *Mapper) Index() *Index {
	return m.index
}

// Page returns the current page geometry.
func (m *Mapper) Page() model.PageGeometry {
	return m.page
}

// Map returns the region under the sample, if any.
func (m *Mapper) Map(sample model.GazeSample) (model.TextRegion, bool) {
	return m.index.Query(m.ToDocument(model.Point{X: sample.X, Y: sample.Y}))
}

// ToDocument converts a screen point into document coordinates. When the
// page geometry is unusable the point is returned unchanged.
func (m *Mapper) ToDocument(p model.Point) model.Point {
	g := m.page
	if !positive(g.PageWidth, g.PageHeight, g.RenderedWidth, g.RenderedHeight) {
		return p
	}
	scaleX := g.RenderedWidth / g.PageWidth
	scaleY := g.RenderedHeight / g.PageHeight
	if !finite(scaleX, scaleY) {
		return p
	}
	return model.Point{
		X: (p.X - g.OffsetX) / scaleX,
		Y: (p.Y - g.OffsetY) / scaleY,
	}
}

// Highlight returns the overlay box for a region on the current page.
func (m *Mapper) Highlight(r model.TextRegion) model.Highlight {
	return model.Highlight{
		PageWidth:  m.page.PageWidth,
		PageHeight: m.page.PageHeight,
		X:          r.X,
		Y:          r.Y,
		Width:      r.Width,
		Height:     r.Height,
	}
}

// Rendered returns the renderer's reported pixel size.
func (m *Mapper) Rendered() model.Size {
	return model.Size{Width: m.page.RenderedWidth, Height: m.page.RenderedHeight}
}

func positive(values ...float64) bool {
	for _, v := range values {
		if !(v > 0) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
