package export

import (
	"fmt"
	"image"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/draw"

	"github.com/noah-isme/backend-invoice/internal/layout"
	"github.com/noah-isme/backend-invoice/internal/pricing"
)

// PaymentPayload is the text encoded in the payment QR code.
func PaymentPayload(doc Document) string {
	parts := []string{"INVOICE:" + doc.Number, "TOTAL:" + pricing.Round(doc.Total).StringFixed(2)}
	if c := strings.TrimSpace(doc.Currency); c != "" {
		parts = append(parts, "CURRENCY:"+c)
	}
	return strings.Join(parts, ";")
}

func (a *Assembler) placeQR(pdf *gofpdf.Fpdf, last layout.PageSlice, doc Document) error {
	y := last.DestY + last.Height + 2
	limit := a.Format.Height - a.Margin
	if last.PageCount > 1 && a.Footer {
		limit = a.Format.Height - footerOffsetMM - footerFontSize
	}
	if y+qrSizeMM > limit {
		return nil
	}

	code, err := qr.Encode(PaymentPayload(doc), qr.M, qr.Auto)
	if err != nil {
		return fmt.Errorf("export: encode qr: %w", err)
	}
	code, err = barcode.Scale(code, qrPixels, qrPixels)
	if err != nil {
		return fmt.Errorf("export: scale qr: %w", err)
	}
	// Barcodes are 16-bit gray, which PDF image embedding does not take.
	gray := image.NewGray(code.Bounds())
	draw.Draw(gray, gray.Bounds(), code, code.Bounds().Min, draw.Src)
	buf, err := encodePNG(gray)
	if err != nil {
		return fmt.Errorf("export: encode qr png: %w", err)
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("payment-qr", opts, buf)
	pdf.ImageOptions("payment-qr", a.Format.Width-a.Margin-qrSizeMM, y, qrSizeMM, qrSizeMM, false, opts, 0, "")
	return nil
}
