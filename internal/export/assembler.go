package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"regexp"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/draw"

	"github.com/noah-isme/backend-invoice/internal/layout"
	"github.com/noah-isme/backend-invoice/internal/pricing"
)

const (
	footerFontSize = 8
	footerGray     = 100
	footerOffsetMM = 10
	qrSizeMM       = 22
	qrPixels       = 256
)

// ErrNoImage is returned when there is no raster to assemble.
var ErrNoImage = errors.New("export: no image")

// Document identifies the invoice a raster belongs to.
type Document struct {
	Number   string
	Total    pricing.Money
	Currency string
}

// Result is an assembled PDF.
type Result struct {
	Filename string
	Pages    int
	Data     []byte
}

// Assembler paginates a raster onto fixed-size PDF pages.
type Assembler struct {
	Format     layout.PageFormat
	Margin     float64
	MaxWidthPx int
	// Footer draws "Page i of N for Invoice #X" on multi-page documents.
	Footer bool
	// QRCode places a payment QR code under the content of the last page when it fits.
	QRCode bool
}

// NewAssembler returns an assembler for format with the default margin and footer enabled.
func NewAssembler(format layout.PageFormat) *Assembler {
	return &Assembler{Format: format, Margin: layout.DefaultMargin, Footer: true}
}

// Assemble lays img out on as many pages as it needs and renders the PDF.
func (a *Assembler) Assemble(img image.Image, doc Document) (*Result, error) {
	if img == nil {
		return nil, ErrNoImage
	}
	src := a.fit(img)
	b := src.Bounds()

	slices, err := layout.PlanPages(float64(b.Dx()), float64(b.Dy()), a.Format.Width, a.Format.Height, a.Margin)
	if err != nil {
		return nil, fmt.Errorf("export: plan pages: %w", err)
	}
	if n := len(slices); n > b.Dy() {
		// Every page needs at least one pixel row. Enlarging keeps the aspect ratio, so the plan holds.
		src = enlarge(src, (n+b.Dy()-1)/b.Dy())
		b = src.Bounds()
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: a.Format.Width, Ht: a.Format.Height},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("backend-invoice", true)
	if doc.Number != "" {
		pdf.SetTitle("Invoice "+doc.Number, true)
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	opts := gofpdf.ImageOptions{ImageType: "PNG"}

	for _, s := range slices {
		top, bottom := s.SourceRows(b.Dy())
		band, err := encodePNG(crop(src, image.Rect(b.Min.X, b.Min.Y+top, b.Max.X, b.Min.Y+bottom)))
		if err != nil {
			return nil, fmt.Errorf("export: encode page %d: %w", s.PageIndex+1, err)
		}
		name := fmt.Sprintf("page-%d", s.PageIndex)
		pdf.RegisterImageOptionsReader(name, opts, band)
		pdf.AddPage()
		pdf.ImageOptions(name, s.DestX, s.DestY, s.Width, s.Height, false, opts, 0, "")

		if a.Footer && s.PageCount > 1 {
			pdf.SetFont("Helvetica", "", footerFontSize)
			pdf.SetTextColor(footerGray, footerGray, footerGray)
			pdf.SetXY(0, a.Format.Height-footerOffsetMM-footerFontSize*0.25)
			pdf.CellFormat(a.Format.Width, footerFontSize*0.5, tr(FooterText(s, doc.Number)), "", 0, "C", false, 0, "")
		}
	}

	if a.QRCode && doc.Number != "" {
		last := slices[len(slices)-1]
		if err := a.placeQR(pdf, last, doc); err != nil {
			return nil, err
		}
	}

	if pdf.Err() {
		return nil, fmt.Errorf("export: render pdf: %w", pdf.Error())
	}
	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("export: write pdf: %w", err)
	}
	return &Result{Filename: Filename(doc.Number), Pages: len(slices), Data: out.Bytes()}, nil
}

// FooterText is the page label drawn on multi-page documents.
func FooterText(s layout.PageSlice, number string) string {
	return fmt.Sprintf("%s for Invoice #%s", s.Footer(), number)
}

// fit downscales img to MaxWidthPx when it is wider.
func (a *Assembler) fit(img image.Image) image.Image {
	b := img.Bounds()
	if a.MaxWidthPx <= 0 || b.Dx() <= a.MaxWidthPx {
		return img
	}
	h := b.Dy() * a.MaxWidthPx / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, a.MaxWidthPx, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func enlarge(img image.Image, factor int) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func crop(src image.Image, r image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Copy(dst, image.Point{}, src, r, draw.Src, nil)
	return dst
}

func encodePNG(img image.Image) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return &buf, nil
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Filename returns the download name for an invoice number.
func Filename(number string) string {
	return "Invoice_" + unsafeFilename.ReplaceAllString(number, "_") + ".pdf"
}
