package exportpdf

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/goliatone/go-report-export/export"
)

const mmPerInch = 25.4

var lengthPattern = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)\s*([a-zA-Z]*)\s*$`)

// ChromiumEngine prints report HTML through a shared headless Chromium.
// The browser starts on first use and lives until Close.
type ChromiumEngine struct {
	BrowserPath string
	Headless    bool
	Timeout     time.Duration
	Args        []string

	startOnce     sync.Once
	browserCtx    context.Context
	stopBrowser   context.CancelFunc
	stopAllocator context.CancelFunc
}

// Render prints req.HTML in a fresh tab.
func (e *ChromiumEngine) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	if e == nil {
		return nil, export.NewError(export.KindInternal, "chromium engine is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	params, err := printParams(req.Options)
	if err != nil {
		return nil, err
	}
	if err := e.start(); err != nil {
		return nil, export.NewError(export.KindInternal, "chromium engine init failed", err)
	}

	tabCtx, closeTab := chromedp.NewContext(e.browserCtx)
	defer closeTab()

	// tabs hang off the browser context, so caller cancellation is forwarded
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	runCtx := tabCtx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(tabCtx, e.Timeout)
		defer cancel()
	}

	var out []byte
	if err := chromedp.Run(runCtx, printActions(req, params, &out)...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, export.NewError(export.KindRender, "chromium pdf render failed", err)
	}
	return out, nil
}

func printActions(req RenderRequest, params *page.PrintToPDFParams, out *[]byte) []chromedp.Action {
	var actions []chromedp.Action
	if req.Options.BlockExternal {
		actions = append(actions,
			network.Enable(),
			network.SetBlockedURLs([]string{"http://*", "https://*"}),
		)
	}
	return append(actions,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(req.HTML)).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := params.Do(ctx)
			*out = data
			return err
		}),
	)
}

// Close stops the browser if it was started.
func (e *ChromiumEngine) Close() error {
	if e == nil {
		return nil
	}
	if e.stopBrowser != nil {
		e.stopBrowser()
	}
	if e.stopAllocator != nil {
		e.stopAllocator()
	}
	return nil
}

func (e *ChromiumEngine) start() error {
	e.startOnce.Do(func() {
		opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if e.BrowserPath != "" {
			opts = append(opts, chromedp.ExecPath(e.BrowserPath))
		}
		opts = append(opts, chromedp.Flag("headless", e.Headless))
		opts = append(opts, browserFlags(e.Args)...)

		allocCtx, stopAllocator := chromedp.NewExecAllocator(context.Background(), opts...)
		e.stopAllocator = stopAllocator
		e.browserCtx, e.stopBrowser = chromedp.NewContext(allocCtx)
	})
	if e.browserCtx == nil {
		return errors.New("chromium allocator unavailable")
	}
	return nil
}

// printParams turns page setup into a print request. The paper is sized
// portrait and Chromium rotates it for landscape. An empty page size is A4.
func printParams(opts PDFOptions) (*page.PrintToPDFParams, error) {
	name := opts.PageSize
	if name == "" {
		name = "A4"
	}
	size, ok := export.LookupPageSize(name)
	if !ok {
		return nil, export.NewError(export.KindValidation, fmt.Sprintf("unsupported pdf page size: %s", opts.PageSize), nil)
	}

	var margins [4]float64
	for i, raw := range []string{opts.MarginTop, opts.MarginBottom, opts.MarginLeft, opts.MarginRight} {
		if raw == "" {
			continue
		}
		inches, err := parseLengthInches(raw)
		if err != nil {
			return nil, err
		}
		margins[i] = inches
	}

	params := page.PrintToPDF().
		WithPaperWidth(size.Width / mmPerInch).
		WithPaperHeight(size.Height / mmPerInch).
		WithLandscape(opts.Landscape).
		WithPrintBackground(true).
		WithMarginTop(margins[0]).
		WithMarginBottom(margins[1]).
		WithMarginLeft(margins[2]).
		WithMarginRight(margins[3])

	if opts.FooterPattern != "" {
		params = params.
			WithDisplayHeaderFooter(true).
			WithHeaderTemplate("<span></span>").
			WithFooterTemplate(footerTemplate(opts))
	}
	return params, nil
}

// footerTemplate renders the footer pattern with Chromium's page number
// placeholder. The template is drawn inside the bottom margin.
func footerTemplate(opts PDFOptions) string {
	size := opts.FooterFontSize
	if size <= 0 {
		size = 10
	}
	left := opts.MarginLeft
	if left == "" {
		left = "0"
	}
	before, after, found := strings.Cut(opts.FooterPattern, "%d")
	text := html.EscapeString(before)
	if found {
		text += `<span class="pageNumber"></span>` + html.EscapeString(after)
	}
	return fmt.Sprintf(`<div style="font-size: %gpt; margin-left: %s; width: 100%%;">%s</div>`, size, html.EscapeString(left), text)
}

var inchesPerUnit = map[string]float64{
	"in": 1,
	"cm": 1 / 2.54,
	"mm": 1 / mmPerInch,
	"pt": 1 / 72.0,
	"px": 1 / 96.0,
}

// parseLengthInches reads a CSS-style length. A bare number is inches.
func parseLengthInches(value string) (float64, error) {
	matches := lengthPattern.FindStringSubmatch(value)
	if len(matches) != 3 {
		return 0, export.NewError(export.KindValidation, fmt.Sprintf("invalid pdf length: %s", value), nil)
	}
	amount, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, export.NewError(export.KindValidation, fmt.Sprintf("invalid pdf length: %s", value), err)
	}

	unit := strings.ToLower(matches[2])
	if unit == "" {
		unit = "in"
	}
	factor, ok := inchesPerUnit[unit]
	if !ok {
		return 0, export.NewError(export.KindValidation, fmt.Sprintf("unsupported pdf length unit: %s", unit), nil)
	}
	return amount * factor, nil
}

// browserFlags turns "--name=value" style arguments into allocator flags.
func browserFlags(args []string) []chromedp.ExecAllocatorOption {
	flags := make([]chromedp.ExecAllocatorOption, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimPrefix(strings.TrimSpace(arg), "--")
		if arg == "" {
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			flags = append(flags, chromedp.Flag(name, value))
			continue
		}
		flags = append(flags, chromedp.Flag(arg, true))
	}
	return flags
}
