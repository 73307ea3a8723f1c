// Package exportpdf renders report documents as PDF.
//
// Renderer draws documents natively with fpdf and needs no external tools.
// HTMLRenderer lays documents out as HTML and converts them with a pluggable
// engine (headless Chromium via chromedp, or wkhtmltopdf).
package exportpdf
