package infrastructure

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PreviewPolicy strips scripts and event handlers from server-rendered
// preview markup. The CV templates ship their CSS in <head>, so style blocks
// and style attributes survive along with layout classes and images.
func PreviewPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("html", "head", "body", "style",
		"section", "header", "footer", "article", "main", "span", "div")
	p.AllowAttrs("class", "id", "style").Globally()
	p.AllowDataURIImages()
	// needed to keep <style> text; <script> is still not an allowed element
	// and is dropped with its content
	p.AllowUnsafe(true)
	return p
}

var previewPolicy = PreviewPolicy()

// SanitizePreview returns markup safe to show or print locally.
func SanitizePreview(markup string) string {
	return previewPolicy.Sanitize(markup)
}

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// PreviewMarkdown renders preview markup as Markdown for terminal output.
func PreviewMarkdown(markup string) (string, error) {
	md, err := mdConverter.ConvertString(markup)
	if err != nil {
		return "", fmt.Errorf("preview to markdown: %w", err)
	}
	return md, nil
}

// ErrNotPDF is returned when exported bytes do not parse as a PDF.
var ErrNotPDF = errors.New("exported file is not a valid PDF")

// CheckPDF parses an exported document and returns its page count.
func CheckPDF(b []byte) (int, error) {
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		return 0, ErrNotPDF
	}
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(b), model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	return ctx.PageCount, nil
}
