package region

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/readaid/internal/model"
)

func testRegions() []model.TextRegion {
	return []model.TextRegion{
		{ID: "s1", Text: "First sentence.", X: 0, Y: 0, Width: 200, Height: 20},
		{ID: "s2", Text: "Second sentence.", X: 0, Y: 40, Width: 200, Height: 20},
		{ID: "s3", Text: "Third sentence.", X: 0, Y: 400, Width: 200, Height: 20},
	}
}

func TestQueryNearestCentroid(t *testing.T) {
	idx := NewIndex(testRegions())
	r, ok := idx.Query(model.Point{X: 100, Y: 45})
	require.True(t, ok)
	assert.Equal(t, "s2", r.ID)

	r, ok = idx.Query(model.Point{X: 100, Y: 12})
	require.True(t, ok)
	assert.Equal(t, "s1", r.ID)
}

func TestQueryBeyondThresholdIsNoMatch(t *testing.T) {
	idx := NewIndex(testRegions())
	_, ok := idx.Query(model.Point{X: 100, Y: 200})
	assert.False(t, ok)

	// Exactly on the threshold still matches.
	r, ok := idx.Query(model.Point{X: 100, Y: 410 - ProximityThreshold})
	require.True(t, ok)
	assert.Equal(t, "s3", r.ID)
}

func TestQueryTieBreaksOnDocumentOrder(t *testing.T) {
	idx := NewIndex(testRegions())
	// Halfway between the centroids of s1 (y=10) and s2 (y=50).
	r, ok := idx.Query(model.Point{X: 100, Y: 30})
	require.True(t, ok)
	assert.Equal(t, "s1", r.ID)
}

func TestDegenerateRegionsNeverMatch(t *testing.T) {
	idx := NewIndex([]model.TextRegion{
		{ID: "zero", X: 0, Y: 0, Width: 0, Height: 20},
		{ID: "neg", X: 0, Y: 0, Width: 20, Height: -1},
		{ID: "nan", X: 0, Y: 0, Width: math.NaN(), Height: 20},
		{ID: "ok", X: 0, Y: 100, Width: 20, Height: 20},
	})
	assert.Equal(t, 1, idx.Len())
	r, ok := idx.Query(model.Point{X: 10, Y: 10})
	require.True(t, ok)
	assert.Equal(t, "ok", r.ID)

	_, ok = idx.Lookup("zero")
	assert.False(t, ok)
}

func TestEmptyIndex(t *testing.T) {
	var idx *Index
	_, ok := idx.Query(model.Point{})
	assert.False(t, ok)
	_, ok = NewIndex(nil).Query(model.Point{})
	assert.False(t, ok)
}

func TestMapperConvertsScreenToDocument(t *testing.T) {
	m := NewMapper(model.RegionSnapshot{
		Regions: testRegions(),
		Page: model.PageGeometry{
			PageWidth:      600,
			PageHeight:     800,
			RenderedWidth:  1200,
			RenderedHeight: 1600,
			OffsetX:        50,
			OffsetY:        10,
		},
	})
	// Document (100, 50) renders at (50+200, 10+100).
	r, ok := m.Map(model.GazeSample{X: 250, Y: 110})
	require.True(t, ok)
	assert.Equal(t, "s2", r.ID)
}

func TestMapperUsesRawPointWithoutGeometry(t *testing.T) {
	m := NewMapper(model.RegionSnapshot{Regions: testRegions()})
	r, ok := m.Map(model.GazeSample{X: 100, Y: 410})
	require.True(t, ok)
	assert.Equal(t, "s3", r.ID)
}

func TestMapHighlightScales(t *testing.T) {
	box, ok := MapHighlight(model.Highlight{
		PageWidth: 600, PageHeight: 800, X: 60, Y: 80, Width: 120, Height: 16,
	}, model.Size{Width: 300, Height: 400})
	require.True(t, ok)
	assert.Equal(t, model.PixelBox{X: 30, Y: 40, Width: 60, Height: 8}, box)
}

func TestMapHighlightRejectsInvalidGeometry(t *testing.T) {
	valid := model.Highlight{PageWidth: 600, PageHeight: 800, X: 1, Y: 1, Width: 10, Height: 10}
	rendered := model.Size{Width: 300, Height: 400}

	cases := map[string]func() (model.Highlight, model.Size){
		"zero page width": func() (model.Highlight, model.Size) {
			h := valid
			h.PageWidth = 0
			return h, rendered
		},
		"negative page height": func() (model.Highlight, model.Size) {
			h := valid
			h.PageHeight = -10
			return h, rendered
		},
		"infinite rendered width": func() (model.Highlight, model.Size) {
			return valid, model.Size{Width: math.Inf(1), Height: 400}
		},
		"nan rendered width": func() (model.Highlight, model.Size) {
			return valid, model.Size{Width: math.NaN(), Height: 400}
		},
		"tiny page overflows scale": func() (model.Highlight, model.Size) {
			h := valid
			h.PageWidth = 1e-320
			return h, model.Size{Width: math.MaxFloat64, Height: 400}
		},
	}
	for name, build := range cases {
		h, size := build()
		_, ok := MapHighlight(h, size)
		assert.False(t, ok, name)
	}
}
