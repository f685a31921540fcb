package region

import "github.com/verte-zerg/readaid/internal/model"

// MapHighlight converts a document-space highlight into pixel space for the
// renderer's current size. It reports false when geometry is not yet usable.
func MapHighlight(h model.Highlight, rendered model.Size) (model.PixelBox, bool) {
	if !positive(h.PageWidth, h.PageHeight, h.Width, h.Height, rendered.Width, rendered.Height) {
		return model.PixelBox{}, false
	}
	if !finite(h.X, h.Y) {
		return model.PixelBox{}, false
	}
	scaleX := rendered.Width / h.PageWidth
	scaleY := rendered.Height / h.PageHeight
	if !finite(scaleX, scaleY) {
		return model.PixelBox{}, false
	}
	box := model.PixelBox{
		X:      h.X * scaleX,
		Y:      h.Y * scaleY,
		Width:  h.Width * scaleX,
		Height: h.Height * scaleY,
	}
	if !finite(box.X, box.Y, box.Width, box.Height) {
		return model.PixelBox{}, false
	}
	return box, true
}
