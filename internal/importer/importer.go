// Package importer merges products from an external delimited file into a
// record store.
package importer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/productstore/internal/model"
	"github.com/vyrodovalexey/productstore/internal/store"
)

// ErrNilReader is returned when Import is called without input.
var ErrNilReader = errors.New("import source is nil")

// headerNames are first-column values that mark the first line as a header.
var headerNames = []string{"name", "product", "nome", "produto"}

// Report describes the outcome of an import.
type Report struct {
	// Imported holds the rows appended to the store, in file order.
	Imported []model.Product
	// Skipped holds the rows that could not be parsed.
	Skipped []SkippedLine
	// Lines is the human readable summary, one entry per non-header row.
	Lines []string
}

// SkippedLine is an input row that was not imported.
type SkippedLine struct {
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// String joins the report lines.
func (r *Report) String() string {
	return strings.Join(r.Lines, "\n")
}

// Importer reads external files and merges their rows into a RecordStore.
type Importer struct {
	records store.RecordStore
	logger  *zap.Logger
}

// New creates an Importer writing into records.
func New(records store.RecordStore, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{records: records, logger: logger}
}

// Import is a shorthand for New(rs, nil).Import(ctx, r).
func Import(ctx context.Context, rs store.RecordStore, r io.Reader) (*Report, error) {
	return New(rs, nil).Import(ctx, r)
}

// ImportFile is a shorthand for New(rs, nil).ImportFile(ctx, path).
func ImportFile(ctx context.Context, rs store.RecordStore, path string) (*Report, error) {
	return New(rs, nil).ImportFile(ctx, path)
}

// ImportFile opens path and imports it. The store is not touched when the
// file cannot be opened.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	return im.Import(ctx, f)
}

// Import parses r, appends its rows to the records currently in the store
// and writes the merged set back with a single rewrite. Stores that provide
// Merge do the read and the rewrite under one lock; otherwise ListAll is
// followed by ReplaceAll.
//
// Blank lines are ignored. The first non-blank line is skipped when its
// first column reads name, product, nome or produto (any case). Rows that do
// not parse are reported and skipped.
func (im *Importer) Import(ctx context.Context, r io.Reader) (*Report, error) {
	if r == nil {
		return nil, ErrNilReader
	}

	report, err := im.parse(r)
	if err != nil {
		return nil, err
	}

	total, err := im.merge(ctx, report.Imported)
	if err != nil {
		return nil, err
	}

	im.logger.Info("import completed",
		zap.Int("imported", len(report.Imported)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("total", total),
	)

	return report, nil
}

// merger is implemented by stores that can append rows to their current
// records and rewrite the result under a single lock.
type merger interface {
	Merge(ctx context.Context, products []model.Product) (int, error)
}

// merge writes the current records followed by products back to the store
// and returns the resulting record count.
func (im *Importer) merge(ctx context.Context, products []model.Product) (int, error) {
	if m, ok := im.records.(merger); ok {
		total, err := m.Merge(ctx, products)
		if err != nil {
			return 0, fmt.Errorf("import: merge records: %w", err)
		}
		return total, nil
	}

	existing, err := im.records.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("import: load current records: %w", err)
	}

	merged := make([]model.Product, 0, len(existing)+len(products))
	merged = append(merged, existing...)
	merged = append(merged, products...)

	if err := im.records.ReplaceAll(ctx, merged); err != nil {
		return 0, fmt.Errorf("import: write records: %w", err)
	}

	return len(merged), nil
}

// parse reads r line by line. Lines have no length limit.
func (im *Importer) parse(r io.Reader) (*Report, error) {
	report := &Report{
		Imported: make([]model.Product, 0),
		Skipped:  make([]SkippedLine, 0),
		Lines:    make([]string, 0),
	}

	br := bufio.NewReader(r)
	lineNo := 0
	first := true

	for {
		raw, rerr := br.ReadString('\n')
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return nil, fmt.Errorf("read import source: %w", rerr)
		}
		if raw == "" && rerr != nil {
			break
		}

		lineNo++
		line := strings.TrimSuffix(strings.TrimSuffix(raw, "\n"), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if first {
			first = false
			if isHeader(line) {
				continue
			}
		}

		p, err := store.ParseLine(line)
		if err != nil {
			im.logger.Warn("skipping malformed import line",
				zap.Int("line", lineNo),
				zap.String("text", line),
				zap.Error(err),
			)
			report.Skipped = append(report.Skipped, SkippedLine{Line: lineNo, Text: line, Reason: err.Error()})
			report.Lines = append(report.Lines, fmt.Sprintf("malformed line %d: %s", lineNo, line))
			continue
		}

		report.Imported = append(report.Imported, p)
		report.Lines = append(report.Lines, FormatReportLine(p))
	}

	return report, nil
}

func isHeader(line string) bool {
	col, _, _ := strings.Cut(line, ",")
	col = strings.TrimSpace(col)
	for _, name := range headerNames {
		if strings.EqualFold(col, name) {
			return true
		}
	}
	return false
}

// FormatReportLine renders p as one fixed-width listing line.
func FormatReportLine(p model.Product) string {
	price := decimal.NewFromFloat(p.Price).StringFixed(2)
	return fmt.Sprintf("Name: %-20s | Price: %-10s | Quantity: %d", p.Name, price, p.Quantity)
}
