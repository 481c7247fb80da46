package layout

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDimension is returned when the source or page geometry does not allow a scale to be derived.
var ErrInvalidDimension = errors.New("layout: invalid dimension")

// PageSlice places one horizontal band of the source image on one page.
//
// SourceY and SourceHeight are fractions of the source height. DestX, DestY, Width and Height
// are in page units.
type PageSlice struct {
	PageIndex    int     `json:"pageIndex"`
	PageCount    int     `json:"pageCount"`
	SourceY      float64 `json:"sourceY"`
	SourceHeight float64 `json:"sourceHeight"`
	DestX        float64 `json:"destX"`
	DestY        float64 `json:"destY"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
}

// PlanPages splits content of the given size across as many pages as needed. Each page shows an
// equal, contiguous band of the source scaled to the printable width; slices are returned in
// source order.
func PlanPages(contentWidth, contentHeight, pageWidth, pageHeight, margin float64) ([]PageSlice, error) {
	for _, v := range []float64{contentWidth, contentHeight, pageWidth, pageHeight, margin} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite input", ErrInvalidDimension)
		}
	}
	if contentWidth <= 0 {
		return nil, fmt.Errorf("%w: content width %v", ErrInvalidDimension, contentWidth)
	}
	if pageWidth <= 0 {
		return nil, fmt.Errorf("%w: page width %v", ErrInvalidDimension, pageWidth)
	}
	if contentHeight < 0 {
		contentHeight = 0
	}
	if margin < 0 {
		margin = 0
	}

	printableWidth := pageWidth - 2*margin
	printableHeight := pageHeight - 2*margin
	if printableWidth <= 0 || printableHeight <= 0 {
		return nil, fmt.Errorf("%w: margin %v leaves no printable area on %vx%v", ErrInvalidDimension, margin, pageWidth, pageHeight)
	}
	scaledHeight := contentHeight * printableWidth / contentWidth

	if scaledHeight <= printableHeight {
		return []PageSlice{{
			PageIndex:    0,
			PageCount:    1,
			SourceY:      0,
			SourceHeight: 1,
			DestX:        margin,
			DestY:        margin,
			Width:        printableWidth,
			Height:       scaledHeight,
		}}, nil
	}

	pageCount := int(math.Ceil(scaledHeight / printableHeight))
	bandHeight := scaledHeight / float64(pageCount)
	slices := make([]PageSlice, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		slices = append(slices, PageSlice{
			PageIndex:    i,
			PageCount:    pageCount,
			SourceY:      float64(i) / float64(pageCount),
			SourceHeight: 1 / float64(pageCount),
			DestX:        margin,
			DestY:        margin,
			Width:        printableWidth,
			Height:       bandHeight,
		})
	}
	return slices, nil
}

// SourceBounds returns the [top, bottom) interval of a source of the given height covered by
// the slice. Adjacent slices share their boundary value and the last one ends at contentHeight.
func (s PageSlice) SourceBounds(contentHeight float64) (top, bottom float64) {
	return s.boundary(s.PageIndex, contentHeight), s.boundary(s.PageIndex+1, contentHeight)
}

// SourceRows returns the pixel rows [y0, y1) of a raster with the given height covered by the slice.
func (s PageSlice) SourceRows(pixelHeight int) (y0, y1 int) {
	n := s.count()
	return s.PageIndex * pixelHeight / n, (s.PageIndex + 1) * pixelHeight / n
}

// Footer returns the conventional "Page i of N" label.
func (s PageSlice) Footer() string {
	return fmt.Sprintf("Page %d of %d", s.PageIndex+1, s.count())
}

func (s PageSlice) boundary(k int, height float64) float64 {
	n := s.count()
	if k >= n {
		return height
	}
	return float64(k) * height / float64(n)
}

func (s PageSlice) count() int {
	if s.PageCount <= 0 {
		return 1
	}
	return s.PageCount
}
