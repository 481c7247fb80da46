package export

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-invoice/internal/layout"
)

func striped(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		c := color.RGBA{R: uint8(y % 256), G: 40, B: 90, A: 255}
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func pageObjects(pdf []byte) int {
	return bytes.Count(pdf, []byte("<</Type /Page\n"))
}

func TestAssembleMultiPage(t *testing.T) {
	a := NewAssembler(layout.A4)
	res, err := a.Assemble(striped(190, 1000), Document{Number: "INV-20240305-001"})
	require.NoError(t, err)
	require.Equal(t, 4, res.Pages)
	require.Equal(t, "Invoice_INV_20240305_001.pdf", res.Filename)
	require.True(t, bytes.HasPrefix(res.Data, []byte("%PDF-")))
	require.Equal(t, 4, pageObjects(res.Data))
}

func TestAssembleSinglePageWithQRCode(t *testing.T) {
	a := NewAssembler(layout.A4)
	a.QRCode = true
	res, err := a.Assemble(striped(190, 100), Document{Number: "42", Total: decimal.RequireFromString("24.2")})
	require.NoError(t, err)
	require.Equal(t, 1, res.Pages)
	require.Equal(t, 1, pageObjects(res.Data))
}

func TestAssembleMorePagesThanPixelRows(t *testing.T) {
	format := layout.A4.Landscape()
	a := NewAssembler(format)
	slices, err := layout.PlanPages(1, 3, format.Width, format.Height, a.Margin)
	require.NoError(t, err)
	require.Greater(t, len(slices), 3)

	res, err := a.Assemble(striped(1, 3), Document{Number: "INV-9"})
	require.NoError(t, err)
	require.Equal(t, len(slices), res.Pages)
	require.Equal(t, len(slices), pageObjects(res.Data))
}

func TestAssembleRejectsEmptyImage(t *testing.T) {
	a := NewAssembler(layout.A4)
	_, err := a.Assemble(nil, Document{})
	require.ErrorIs(t, err, ErrNoImage)

	_, err = a.Assemble(image.NewRGBA(image.Rect(0, 0, 0, 10)), Document{})
	require.ErrorIs(t, err, layout.ErrInvalidDimension)
}

func TestFitDownscalesWideRasters(t *testing.T) {
	a := &Assembler{Format: layout.A4, Margin: layout.DefaultMargin, MaxWidthPx: 100}
	got := a.fit(striped(400, 800))
	require.Equal(t, 100, got.Bounds().Dx())
	require.Equal(t, 200, got.Bounds().Dy())

	narrow := striped(50, 80)
	require.Same(t, narrow, a.fit(narrow))
}

func TestFooterText(t *testing.T) {
	slices, err := layout.PlanPages(190, 1000, 210, 297, 10)
	require.NoError(t, err)
	require.Equal(t, "Page 2 of 4 for Invoice #INV-1", FooterText(slices[1], "INV-1"))
}

func TestFilename(t *testing.T) {
	require.Equal(t, "Invoice_INV_2024_03.pdf", Filename("INV/2024 03"))
	require.Equal(t, "Invoice_.pdf", Filename(""))
}

func TestPaymentPayload(t *testing.T) {
	got := PaymentPayload(Document{Number: "INV-1", Total: decimal.RequireFromString("1234.5"), Currency: "JMD"})
	require.Equal(t, "INVOICE:INV-1;TOTAL:1234.50;CURRENCY:JMD", got)
}
