package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/noah-isme/backend-invoice/internal/app"
	"github.com/noah-isme/backend-invoice/internal/config"
	"github.com/noah-isme/backend-invoice/internal/draft"
	"github.com/noah-isme/backend-invoice/internal/export"
	"github.com/noah-isme/backend-invoice/internal/layout"
	"github.com/noah-isme/backend-invoice/internal/obs"
	"github.com/noah-isme/backend-invoice/internal/preview"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "invoicectl",
		Usage: "work with invoice draft snapshots from the command line",
		Commands: []*cli.Command{
			newCommand(),
			totalsCommand(),
			validateCommand(),
			planCommand(),
			previewCommand(),
			renderCommand(),
		},
	}
}

var outFlag = &cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file, - for stdout", Value: "-"}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "new",
		Usage: "write a draft snapshot with the default form values",
		Flags: []cli.Flag{outFlag},
		Action: func(c *cli.Context) error {
			return writeOutput(c, func(w io.Writer) error {
				return draft.Export(w, draft.New(time.Now()))
			})
		},
	}
}

func totalsCommand() *cli.Command {
	return &cli.Command{
		Name:      "totals",
		Usage:     "print the totals of a draft snapshot",
		ArgsUsage: "<draft.json>",
		Action: func(c *cli.Context) error {
			d, err := readDraft(c)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, d.Totals())
		},
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "check that a draft snapshot has everything an export needs",
		ArgsUsage: "<draft.json>",
		Action: func(c *cli.Context) error {
			d, err := readDraft(c)
			if err != nil {
				return err
			}
			if err := d.ValidateForExport(nil); err != nil {
				return cli.Exit(err.Error(), 2)
			}
			fmt.Fprintln(c.App.Writer, "ok")
			return nil
		},
	}
}

// plannedPage is a slice together with the content rows it covers, in content units.
type plannedPage struct {
	layout.PageSlice
	SourceTop    float64 `json:"sourceTop"`
	SourceBottom float64 `json:"sourceBottom"`
	Footer       string  `json:"footer"`
}

func planCommand() *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "split content of the given size into page slices",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "width", Usage: "content width", Required: true},
			&cli.Float64Flag{Name: "height", Usage: "content height", Required: true},
			&cli.StringFlag{Name: "format", Usage: "page format: A4, A5, Letter or Legal", Value: "A4"},
			&cli.BoolFlag{Name: "landscape", Usage: "rotate the page format"},
			&cli.Float64Flag{Name: "margin", Usage: "page margin in page units", Value: layout.DefaultMargin},
		},
		Action: func(c *cli.Context) error {
			format, ok := layout.FormatByName(c.String("format"))
			if !ok {
				return cli.Exit(fmt.Sprintf("unknown page format %q", c.String("format")), 2)
			}
			if c.Bool("landscape") {
				format = format.Landscape()
			}
			slices, err := format.Plan(c.Float64("width"), c.Float64("height"), c.Float64("margin"))
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			height := c.Float64("height")
			pages := make([]plannedPage, len(slices))
			for i, s := range slices {
				top, bottom := s.SourceBounds(height)
				pages[i] = plannedPage{PageSlice: s, SourceTop: top, SourceBottom: bottom, Footer: s.Footer()}
			}
			return printJSON(c.App.Writer, map[string]any{
				"format":    format.Name,
				"pageCount": len(slices),
				"pages":     pages,
			})
		},
	}
}

func previewCommand() *cli.Command {
	return &cli.Command{
		Name:      "preview",
		Usage:     "render the printable HTML document of a draft snapshot",
		ArgsUsage: "<draft.json>",
		Flags: []cli.Flag{
			outFlag,
			&cli.StringFlag{Name: "symbol", Usage: "currency symbol", Value: "$"},
		},
		Action: func(c *cli.Context) error {
			d, err := readDraft(c)
			if err != nil {
				return err
			}
			renderer, err := preview.NewRenderer(preview.Options{Symbol: c.String("symbol")})
			if err != nil {
				return err
			}
			return writeOutput(c, func(w io.Writer) error { return renderer.Render(w, d) })
		},
	}
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "export a draft snapshot to a paginated PDF with headless Chrome",
		ArgsUsage: "<draft.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output PDF, defaults to Invoice_<number>.pdf"},
			&cli.BoolFlag{Name: "force", Usage: "export even when required fields are missing"},
		},
		Action: func(c *cli.Context) error {
			d, err := readDraft(c)
			if err != nil {
				return err
			}
			if err := d.ValidateForExport(nil); err != nil && !c.Bool("force") {
				return cli.Exit(err.Error(), 2)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			// Drafts are read from the command line; the store directory is scratch space.
			scratch, err := os.MkdirTemp("", "invoicectl-*")
			if err != nil {
				return err
			}
			defer os.RemoveAll(scratch)
			cfg.DraftsDir = scratch
			cfg.RedisURL = ""

			logger := obs.NewLogger("console", "warn")
			deps, err := app.New(c.Context, cfg, logger, app.Options{RequireRasterizer: true})
			if err != nil {
				return err
			}
			defer deps.Close()

			res, err := renderPDF(c.Context, deps, d)
			if err != nil {
				return err
			}
			out := c.String("out")
			if out == "" {
				out = res.Filename
			}
			if err := os.WriteFile(out, res.Data, 0o644); err != nil {
				return fmt.Errorf("write pdf: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "%s (%d pages)\n", out, res.Pages)
			return nil
		},
	}
}

func renderPDF(ctx context.Context, deps *app.Dependencies, d *draft.Draft) (*export.Result, error) {
	html, err := deps.Renderer.RenderString(d)
	if err != nil {
		return nil, err
	}
	img, err := deps.Rasterizer.Rasterize(ctx, html)
	if err != nil {
		return nil, err
	}
	return deps.Assembler.Assemble(img, export.Document{
		Number:   d.Invoice.Number,
		Total:    d.Totals().Total,
		Currency: d.Currency,
	})
}

func readDraft(c *cli.Context) (*draft.Draft, error) {
	path := strings.TrimSpace(c.Args().First())
	if path == "" {
		return nil, cli.Exit("a draft snapshot path is required, - reads stdin", 2)
	}
	var r io.Reader = c.App.Reader
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	d, err := draft.Import(r)
	if err != nil {
		if errors.Is(err, draft.ErrInvalidSnapshot) {
			return nil, cli.Exit(err.Error(), 2)
		}
		return nil, err
	}
	return d, nil
}

func writeOutput(c *cli.Context, fn func(io.Writer) error) error {
	out := c.String("out")
	if out == "" || out == "-" {
		return fn(c.App.Writer)
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
