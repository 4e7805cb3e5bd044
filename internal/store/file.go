package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/productstore/internal/model"
)

const filePerm fs.FileMode = 0o644

// FileStore implements RecordStore on top of a single delimited text file:
// one header line followed by one line per record.
//
// Every mutation other than Insert reads the whole file and writes it back.
// With atomic writes (the default) the new content goes to a temporary file
// that is renamed over the original. Without them the file is truncated and
// rewritten in place, so an interrupted rewrite can leave it truncated.
//
// Calls on one FileStore are serialized. Nothing guards the file against
// other processes.
type FileStore struct {
	path   string
	header string
	atomic bool
	logger *zap.Logger

	mu sync.Mutex
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithHeader overrides the header line written to new files.
func WithHeader(header string) FileStoreOption {
	return func(s *FileStore) {
		if header != "" {
			s.header = header
		}
	}
}

// WithAtomicWrites selects between temp-file-and-rename rewrites (true)
// and in-place truncating rewrites (false).
func WithAtomicWrites(enabled bool) FileStoreOption {
	return func(s *FileStore) {
		s.atomic = enabled
	}
}

// WithLogger sets the logger used for warnings and failures.
func WithLogger(logger *zap.Logger) FileStoreOption {
	return func(s *FileStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewFileStore creates a FileStore for path, creating the file with just the
// header line if it does not exist. An existing file is left untouched.
//
// If the file cannot be created the store is still returned, along with an
// error wrapping ErrIO. Callers may keep using it; each operation will report
// its own failure.
func NewFileStore(path string, opts ...FileStoreOption) (*FileStore, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}

	s := &FileStore{
		path:   path,
		header: DefaultHeader,
		atomic: true,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.ensureFile(); err != nil {
		s.logger.Warn("record file unavailable, continuing in degraded mode",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return s, err
	}

	return s, nil
}

// Path returns the record file path.
func (s *FileStore) Path() string {
	return s.path
}

// Header returns the header line written on rewrites.
func (s *FileStore) Header() string {
	return s.header
}

// Insert appends p as a new line. The file is never read.
func (s *FileStore) Insert(ctx context.Context, p model.Product) (err error) {
	start := time.Now()
	defer func() { s.finish("insert", start, err) }()

	select {
	case <-ctx.Done():
		return fmt.Errorf("insert record: %w", ctx.Err())
	default:
	}

	line, err := FormatLine(p)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return ioError("insert record", err)
	}

	if _, werr := f.WriteString(line + "\n"); werr != nil {
		_ = f.Close()
		return ioError("insert record", werr)
	}

	if cerr := f.Close(); cerr != nil {
		return ioError("insert record", cerr)
	}

	return nil
}

// ListAll reads the file and returns its records in file order. Blank lines
// and the first non-blank line are skipped. Lines that fail to parse are
// logged and dropped.
func (s *FileStore) ListAll(ctx context.Context) (_ []model.Product, err error) {
	start := time.Now()
	defer func() { s.finish("list", start, err) }()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("list records: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	lines, err := s.readLines()
	s.mu.Unlock()
	if err != nil {
		return nil, ioError("list records", err)
	}

	return s.parseRecords(lines), nil
}

// parseRecords returns the records in lines, skipping blank lines and the
// first non-blank line. Malformed lines are logged, counted and dropped.
func (s *FileStore) parseRecords(lines []string) []model.Product {
	products := make([]model.Product, 0, len(lines))
	headerSkipped := false

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		if !headerSkipped {
			headerSkipped = true
			continue
		}

		p, err := ParseLine(line)
		if err != nil {
			storeMalformedLinesTotal.Inc()
			s.logger.Warn("skipping malformed record line",
				zap.String("path", s.path),
				zap.Int("line", i+1),
				zap.String("text", line),
				zap.Error(err),
			)
			continue
		}

		products = append(products, p)
	}

	return products
}

// Update replaces the first line after the header whose record matches old
// with the serialization of updated. The file is rewritten even when nothing
// matched, in which case ErrNoMatch is returned.
func (s *FileStore) Update(ctx context.Context, old, updated model.Product) (err error) {
	start := time.Now()
	defer func() { s.finish("update", start, err) }()

	select {
	case <-ctx.Done():
		return fmt.Errorf("update record: %w", ctx.Err())
	default:
	}

	newLine, err := FormatLine(updated)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.readLines()
	if err != nil {
		return ioError("update record", err)
	}

	idx := findMatch(lines, old)
	if idx >= 0 {
		lines[idx] = newLine
	}

	if werr := s.writeLines(lines); werr != nil {
		return ioError("update record", werr)
	}

	if idx < 0 {
		return fmt.Errorf("update record %s: %w", old, ErrNoMatch)
	}

	return nil
}

// Delete removes the first line after the header whose record matches p.
// The header line is always kept. The file is rewritten even when nothing
// matched, in which case ErrNoMatch is returned.
func (s *FileStore) Delete(ctx context.Context, p model.Product) (err error) {
	start := time.Now()
	defer func() { s.finish("delete", start, err) }()

	select {
	case <-ctx.Done():
		return fmt.Errorf("delete record: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.readLines()
	if err != nil {
		return ioError("delete record", err)
	}

	idx := findMatch(lines, p)
	if idx >= 0 {
		lines = slices.Delete(lines, idx, idx+1)
	}

	if werr := s.writeLines(lines); werr != nil {
		return ioError("delete record", werr)
	}

	if idx < 0 {
		return fmt.Errorf("delete record %s: %w", p, ErrNoMatch)
	}

	return nil
}

// ReplaceAll rewrites the file as the header line followed by products in
// the given order.
func (s *FileStore) ReplaceAll(ctx context.Context, products []model.Product) (err error) {
	start := time.Now()
	defer func() { s.finish("replace_all", start, err) }()

	select {
	case <-ctx.Done():
		return fmt.Errorf("replace records: %w", ctx.Err())
	default:
	}

	lines := make([]string, 0, len(products)+1)
	lines = append(lines, s.header)

	for _, p := range products {
		line, ferr := FormatLine(p)
		if ferr != nil {
			return fmt.Errorf("replace records: %w", ferr)
		}
		lines = append(lines, line)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if werr := s.writeLines(lines); werr != nil {
		return ioError("replace records", werr)
	}

	return nil
}

// Merge rewrites the file as the header line, the records ListAll would
// return, then products. The read and the rewrite happen under one lock, so
// an Insert cannot land between them. It returns the number of records
// written.
func (s *FileStore) Merge(ctx context.Context, products []model.Product) (total int, err error) {
	start := time.Now()
	defer func() { s.finish("merge", start, err) }()

	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("merge records: %w", ctx.Err())
	default:
	}

	added := make([]string, 0, len(products))
	for _, p := range products {
		line, ferr := FormatLine(p)
		if ferr != nil {
			return 0, fmt.Errorf("merge records: %w", ferr)
		}
		added = append(added, line)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.readLines()
	if err != nil {
		return 0, ioError("merge records", err)
	}

	current := s.parseRecords(lines)
	out := make([]string, 0, len(current)+len(added)+1)
	out = append(out, s.header)
	for _, p := range current {
		line, ferr := FormatLine(p)
		if ferr != nil {
			return 0, fmt.Errorf("merge records: %w", ferr)
		}
		out = append(out, line)
	}
	out = append(out, added...)

	if werr := s.writeLines(out); werr != nil {
		return 0, ioError("merge records", werr)
	}

	return len(out) - 1, nil
}

// ensureFile creates the record file with the header line unless it exists.
func (s *FileStore) ensureFile() error {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return ioError("create record file", err)
	}

	if _, err := f.WriteString(s.header + "\n"); err != nil {
		_ = f.Close()
		return ioError("create record file", err)
	}

	if err := f.Close(); err != nil {
		return ioError("create record file", err)
	}

	s.logger.Info("record file created", zap.String("path", s.path))
	return nil
}

// readLines returns the file content split into lines without terminators.
func (s *FileStore) readLines() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	return splitLines(data), nil
}

// writeLines replaces the file content with lines, each newline-terminated.
func (s *FileStore) writeLines(lines []string) error {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	data := []byte(b.String())

	if s.atomic {
		return renameio.WriteFile(s.path, data, filePerm)
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

// finish records metrics for an operation and logs its failure.
func (s *FileStore) finish(operation string, start time.Time, err error) {
	observe(backendFile, operation, start, err)

	switch resultLabel(err) {
	case resultOK, resultCanceled:
		return
	case resultMiss:
		s.logger.Info("no record matched",
			zap.String("operation", operation),
			zap.String("path", s.path),
		)
	default:
		s.logger.Error("record store operation failed",
			zap.String("operation", operation),
			zap.String("path", s.path),
			zap.Error(err),
		)
	}
}

// findMatch returns the index of the first line after the header that parses
// to a record matching target, or -1.
func findMatch(lines []string, target model.Product) int {
	for i := 1; i < len(lines); i++ {
		p, err := ParseLine(lines[i])
		if err != nil {
			continue
		}
		if p.Matches(target) {
			return i
		}
	}
	return -1
}

// splitLines splits file content on '\n', dropping a trailing terminator
// and any '\r' before each terminator.
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	return lines
}

func ioError(operation string, err error) error {
	return fmt.Errorf("%s: %w: %w", operation, ErrIO, err)
}
