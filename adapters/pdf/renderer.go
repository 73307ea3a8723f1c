package exportpdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/goliatone/go-report-export/export"
)

// DefaultMaxHTMLBytes guards in-memory HTML buffering before PDF conversion.
const DefaultMaxHTMLBytes int64 = 8 * 1024 * 1024

// PDFOptions carries page setup for HTML-to-PDF engines. Lengths accept
// in, cm, mm, pt and px units.
type PDFOptions struct {
	PageSize      string
	Landscape     bool
	MarginTop     string
	MarginBottom  string
	MarginLeft    string
	MarginRight   string
	BlockExternal bool
	// FooterPattern is a printf pattern with a single %d for the page number.
	FooterPattern  string
	FooterFontSize float64
}

// OptionsFromLayout maps a document layout onto engine page setup.
func OptionsFromLayout(layout export.DocumentLayout) PDFOptions {
	return PDFOptions{
		PageSize:       layout.PageSize,
		Landscape:      layout.Landscape,
		MarginTop:      fmt.Sprintf("%gmm", layout.MarginTop),
		MarginBottom:   fmt.Sprintf("%gmm", layout.MarginBottom),
		MarginLeft:     fmt.Sprintf("%gmm", layout.MarginLeft),
		MarginRight:    fmt.Sprintf("%gmm", layout.MarginRight),
		BlockExternal:  true,
		FooterPattern:  layout.FooterPattern,
		FooterFontSize: layout.FooterFontSize,
	}
}

// RenderRequest contains HTML input and render options for PDF engines.
type RenderRequest struct {
	HTML    []byte
	Options PDFOptions
}

// Engine renders HTML content into PDF bytes.
type Engine interface {
	Render(ctx context.Context, req RenderRequest) ([]byte, error)
}

// EngineFunc adapts a function to an Engine.
type EngineFunc func(ctx context.Context, req RenderRequest) ([]byte, error)

func (f EngineFunc) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	if f == nil {
		return nil, errors.New("pdf engine func is nil")
	}
	return f(ctx, req)
}

// HTMLRenderer lays documents out as HTML and converts them with an Engine.
type HTMLRenderer struct {
	Engine       Engine
	MaxHTMLBytes int64
}

// RenderDocument implements export.DocumentRenderer.
func (r HTMLRenderer) RenderDocument(ctx context.Context, doc export.Document, w io.Writer) (export.RenderStats, error) {
	if r.Engine == nil {
		return export.RenderStats{}, export.NewError(export.KindValidation, "pdf renderer requires engine", nil)
	}
	if err := ctx.Err(); err != nil {
		return export.RenderStats{}, err
	}

	buffer := newLimitedBuffer(r.MaxHTMLBytes)
	if err := WriteHTML(buffer, doc); err != nil {
		return export.RenderStats{}, err
	}

	pdf, err := r.Engine.Render(ctx, RenderRequest{
		HTML:    buffer.Bytes(),
		Options: OptionsFromLayout(doc.Layout),
	})
	if err != nil {
		return export.RenderStats{}, err
	}

	rows := int64(len(doc.Rows))
	cw := &countingWriter{w: w}
	if len(pdf) > 0 {
		if _, err := cw.Write(pdf); err != nil {
			return export.RenderStats{Rows: rows, Bytes: cw.count}, err
		}
	}

	return export.RenderStats{Rows: rows, Bytes: cw.count, Pages: countPages(pdf)}, nil
}

// countPages counts page objects in an uncompressed page tree. Zero means
// unknown.
func countPages(pdf []byte) int {
	return len(pageObjectPattern.FindAll(pdf, -1))
}

var pageObjectPattern = regexp.MustCompile(`/Type\s*/Page\b`)

// WKHTMLTOPDFEngine invokes wkhtmltopdf for HTML-to-PDF conversion.
type WKHTMLTOPDFEngine struct {
	Command string
	Args    []string
	Env     []string
	Timeout time.Duration
}

// Render executes wkhtmltopdf using stdin/stdout for HTML/PDF.
func (e WKHTMLTOPDFEngine) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	cmdPath := strings.TrimSpace(e.Command)
	if cmdPath == "" {
		cmdPath = "wkhtmltopdf"
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cmdCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	args := wkhtmltopdfArgs(req.Options)
	args = append(args, e.Args...)
	args = append(args, "-", "-")
	cmd := exec.CommandContext(cmdCtx, cmdPath, args...)
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	cmd.Stdin = bytes.NewReader(req.HTML)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = "wkhtmltopdf failed"
		}
		return nil, export.NewError(export.KindRender, message, err)
	}
	return stdout.Bytes(), nil
}

func wkhtmltopdfArgs(opts PDFOptions) []string {
	args := []string{"--quiet", "--encoding", "utf-8"}
	if opts.PageSize != "" {
		args = append(args, "--page-size", opts.PageSize)
	}
	if opts.Landscape {
		args = append(args, "--orientation", "Landscape")
	}
	if opts.MarginTop != "" {
		args = append(args, "--margin-top", opts.MarginTop)
	}
	if opts.MarginBottom != "" {
		args = append(args, "--margin-bottom", opts.MarginBottom)
	}
	if opts.MarginLeft != "" {
		args = append(args, "--margin-left", opts.MarginLeft)
	}
	if opts.MarginRight != "" {
		args = append(args, "--margin-right", opts.MarginRight)
	}
	if opts.BlockExternal {
		args = append(args, "--disable-external-links", "--disable-javascript")
	}
	if opts.FooterPattern != "" {
		args = append(args, "--footer-left", strings.ReplaceAll(opts.FooterPattern, "%d", "[page]"))
		if opts.FooterFontSize > 0 {
			args = append(args, "--footer-font-size", fmt.Sprintf("%g", opts.FooterFontSize))
		}
	}
	return args
}

type limitedBuffer struct {
	buf     bytes.Buffer
	maxSize int64
}

func newLimitedBuffer(maxSize int64) *limitedBuffer {
	if maxSize <= 0 {
		maxSize = DefaultMaxHTMLBytes
	}
	return &limitedBuffer{maxSize: maxSize}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.maxSize > 0 && int64(b.buf.Len()+len(p)) > b.maxSize {
		return 0, export.NewError(export.KindValidation, "pdf renderer max html bytes exceeded", nil)
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}
