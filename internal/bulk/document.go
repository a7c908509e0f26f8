package bulk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"golang-ledger-ingestion/internal/parsers"
	"golang-ledger-ingestion/pkg/errors"
)

// Document types accepted for import
const (
	DocCSVExport     = "csv_export"
	DocXLSXExport    = "xlsx_export"
	DocOFXStatement  = "ofx_statement"
	DocPDFStatement  = "pdf_statement"
	DocAppScreenshot = "app_screenshot"
	DocPassbookPhoto = "passbook_photo"
)

// DocumentTypes lists the supported document types
var DocumentTypes = []string{
	DocCSVExport, DocXLSXExport, DocOFXStatement,
	DocPDFStatement, DocAppScreenshot, DocPassbookPhoto,
}

// DefaultConfidence applies to document types without their own score
const DefaultConfidence = 0.70

var confidenceByType = map[string]float64{
	DocCSVExport:     0.95,
	DocOFXStatement:  0.95,
	DocXLSXExport:    0.95,
	DocPDFStatement:  0.90,
	DocAppScreenshot: 0.80,
	DocPassbookPhoto: 0.75,
}

// Confidence returns the score given to rows of a document type
func Confidence(docType string) float64 {
	if c, ok := confidenceByType[docType]; ok {
		return c
	}
	return DefaultConfidence
}

// ErrUnsupportedDocument marks a document type with no row parser
var ErrUnsupportedDocument = fmt.Errorf("unsupported document type")

// UnsupportedDocumentError carries the raw lines of a document nothing could
// parse, so the caller can show them to the owner instead
type UnsupportedDocumentError struct {
	Type  string
	Lines []string
}

func (e *UnsupportedDocumentError) Error() string {
	return fmt.Sprintf("%v %q (%d lines)", ErrUnsupportedDocument, e.Type, len(e.Lines))
}

// Is matches ErrUnsupportedDocument
func (e *UnsupportedDocumentError) Is(target error) bool {
	return target == ErrUnsupportedDocument
}

// ParseDocument reads an uploaded document of docType. Files go through the
// table parsers; OCR and extracted text through the row parsers. Unknown
// types return an UnsupportedDocumentError holding the raw lines. A panic
// while parsing is returned as an internal error.
func (i *Importer) ParseDocument(ctx context.Context, docType, name string, r io.Reader) (doc *parsers.Document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			i.logger.WithField("document", name).Error("Document parser panicked")
			doc, err = nil, errors.InternalError(errors.CodeUnexpectedError, "parse_document", fmt.Errorf("panic: %v", rec))
		}
	}()

	switch docType {
	case DocCSVExport:
		return i.table.ParseCSV(ctx, r, name)
	case DocXLSXExport:
		return i.table.ParseXLSX(ctx, r, name)
	case DocOFXStatement:
		return i.table.ParseOFX(ctx, r, name)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, name, err)
	}
	text := string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))

	switch docType {
	case DocPDFStatement:
		doc = parsers.ParseStatementRows(text, i.config.Table.Location)
	case DocPassbookPhoto, DocAppScreenshot:
		doc = parsers.ParsePassbookRows(text, i.config.Table.Location)
	default:
		return nil, errors.ParseError(errors.CodeUnsupportedDocument, docType, 0, "", "",
			&UnsupportedDocumentError{Type: docType, Lines: rawLines(text)})
	}
	doc.Name = name
	return doc, nil
}

func rawLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
