// Package csvlog persists the observation log as a header-bearing CSV file.
//
// Every text field is quoted with embedded quotes doubled, so names containing
// delimiters or quotes round-trip unchanged. Appends are all-or-nothing: a failed
// batch is truncated away before the error is returned.
package csvlog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	v1 "github.com/aevon-lab/pricewatch/internal/api/v1"
	"github.com/aevon-lab/pricewatch/internal/core/storage"
	"github.com/shopspring/decimal"
)

// TimeLayout is the timestamp format written to the log. Always UTC.
const TimeLayout = "2006-01-02 15:04:05"

// readLayouts are accepted on load, covering every format older deployments wrote.
var readLayouts = []string{
	TimeLayout,
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Store implements storage.HistoryStore on a local CSV file.
type Store struct {
	path string
	mu   sync.Mutex
}

// New creates a store for the file at path. The file is created on first append.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the log file location.
func (s *Store) Path() string {
	return s.path
}

// Ping checks that the log directory is reachable.
func (s *Store) Ping(_ context.Context) error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("history dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("history dir %q is not a directory", dir)
	}
	return nil
}

// Load reads the log. A missing file is an empty history.
func (s *Store) Load(ctx context.Context) (*storage.LoadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &storage.LoadResult{SchemaVersion: storage.SchemaV2}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	res, err := decode(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", s.path, err)
	}

	for _, rowErr := range res.Corrupt {
		slog.Warn("[CSVStore] Skipping corrupt history row",
			"path", s.path,
			"line", rowErr.Line,
			"reason", rowErr.Reason,
		)
	}
	slog.Info("[CSVStore] History loaded",
		"path", s.path,
		"rows", len(res.Observations),
		"corrupt_rows", len(res.Corrupt),
		"schema_version", res.SchemaVersion,
	)
	if res.SchemaVersion != storage.SchemaV2 {
		slog.Info("[CSVStore] Legacy history layout, rewritten to the canonical layout on next append",
			"path", s.path,
			"schema_version", res.SchemaVersion,
		)
	}
	return res, nil
}

func decode(ctx context.Context, r io.Reader) (*storage.LoadResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	res := &storage.LoadResult{}
	var (
		lay      layout
		resolved bool
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				res.Corrupt = append(res.Corrupt, storage.RowError{Line: parseErr.StartLine, Reason: parseErr.Err.Error()})
				continue
			}
			return nil, err
		}
		line, _ := reader.FieldPos(0)

		if !resolved {
			resolved = true
			if header, ok := parseHeader(record); ok {
				lay = header
				continue
			}
			lay = canonicalLayout()
		}

		obs, reason := decodeRow(lay, record)
		if reason != "" {
			res.Corrupt = append(res.Corrupt, storage.RowError{Line: line, Reason: reason})
			continue
		}
		res.Observations = append(res.Observations, obs)
	}

	if !resolved {
		lay = canonicalLayout()
	}
	res.SchemaVersion = lay.version
	return res, nil
}

func decodeRow(lay layout, record []string) (v1.Observation, string) {
	if len(record) != len(lay.columns) {
		return v1.Observation{}, fmt.Sprintf("expected %d columns, got %d", len(lay.columns), len(record))
	}

	var (
		obs      v1.Observation
		hasDate  bool
		hasPrice bool
	)
	for i, col := range lay.columns {
		value := record[i]
		switch col {
		case colDate:
			ts, err := parseTime(strings.TrimSpace(value))
			if err != nil {
				return v1.Observation{}, fmt.Sprintf("unparseable timestamp %q", value)
			}
			obs.ObservedAt = ts
			hasDate = true
		case colPrice:
			price, err := decimal.NewFromString(strings.TrimSpace(value))
			if err != nil {
				return v1.Observation{}, fmt.Sprintf("unparseable price %q", value)
			}
			if price.IsNegative() {
				return v1.Observation{}, fmt.Sprintf("negative price %q", value)
			}
			obs.Price = price
			hasPrice = true
		case colSource:
			obs.Source = value
		case colName:
			obs.Name = value
		case colIdentifier:
			obs.Identifier = value
		case colLink:
			obs.Link = value
		case colImage:
			obs.Image = value
		}
	}
	if !hasDate || !hasPrice {
		return v1.Observation{}, "row has no date or price column"
	}

	// Legacy rows without an identifier are keyed by their link.
	if strings.TrimSpace(obs.Identifier) == "" {
		obs.Identifier = strings.TrimSpace(obs.Link)
	}
	obs.PriceUnknown = obs.Price.IsZero()
	return obs, ""
}

func parseTime(value string) (time.Time, error) {
	for _, l := range readLayouts {
		if ts, err := time.Parse(l, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unknown timestamp format %q", value)
}

// Append writes the batch in one write followed by fsync. On any failure the file is
// truncated back to its previous size and the error wraps storage.ErrWriteFailed.
// A log in a legacy layout is upgraded to the canonical one before the first append.
func (s *Store) Append(ctx context.Context, observations []v1.Observation) error {
	if len(observations) == 0 {
		return nil
	}
	for i := range observations {
		if err := observations[i].Validate(); err != nil {
			return fmt.Errorf("%w: observation %d: %v", storage.ErrWriteFailed, i, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrWriteFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.upgrade(ctx); err != nil {
		return fmt.Errorf("%w: upgrade %s: %v", storage.ErrWriteFailed, s.path, err)
	}

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", storage.ErrWriteFailed, s.path, err)
	}

	size, lay, needsNewline, err := inspect(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: inspect %s: %v", storage.ErrWriteFailed, s.path, err)
	}

	var buf bytes.Buffer
	if needsNewline {
		buf.WriteByte('\n')
	}
	if size == 0 {
		writeHeader(&buf, lay)
	}
	for _, obs := range observations {
		encodeRow(&buf, lay, obs)
	}

	if err := writeAll(f, buf.Bytes()); err != nil {
		if truncErr := f.Truncate(size); truncErr != nil {
			slog.Error("[CSVStore] Rollback after failed append did not complete",
				"path", s.path,
				"error", truncErr,
			)
		}
		f.Close()
		return fmt.Errorf("%w: %s: %v", storage.ErrWriteFailed, s.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", storage.ErrWriteFailed, s.path, err)
	}

	slog.Info("[CSVStore] Appended observations",
		"path", s.path,
		"rows", len(observations),
		"schema_version", lay.version,
	)
	return nil
}

func writeAll(f *os.File, data []byte) error {
	n, err := f.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return io.ErrShortWrite
	}
	return f.Sync()
}

// inspect returns the current size of the log, the layout appends must follow and
// whether the last row lacks a trailing newline.
func inspect(f *os.File) (int64, layout, bool, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, layout{}, false, err
	}
	size := info.Size()
	if size == 0 {
		return 0, canonicalLayout(), false, nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return 0, layout{}, false, err
	}

	reader := csv.NewReader(io.NewSectionReader(f, 0, size))
	reader.FieldsPerRecord = -1
	first, err := reader.Read()
	if err != nil && err != io.EOF {
		return 0, layout{}, false, fmt.Errorf("read header: %w", err)
	}
	lay, ok := parseHeader(first)
	if !ok {
		lay = canonicalLayout()
	}
	return size, lay, last[0] != '\n', nil
}

func writeHeader(buf *bytes.Buffer, lay layout) {
	for i, name := range lay.header {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeField(buf, name)
	}
	buf.WriteByte('\n')
}

func encodeRow(buf *bytes.Buffer, lay layout, obs v1.Observation) {
	for i, col := range lay.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		switch col {
		case colDate:
			writeQuoted(buf, obs.ObservedAt.UTC().Format(TimeLayout))
		case colPrice:
			buf.WriteString(obs.Price.String())
		case colSource:
			writeQuoted(buf, obs.Source)
		case colName:
			writeQuoted(buf, obs.Name)
		case colIdentifier:
			writeQuoted(buf, obs.Identifier)
		case colLink:
			writeQuoted(buf, obs.Link)
		case colImage:
			writeQuoted(buf, obs.Image)
		default:
			writeQuoted(buf, "")
		}
	}
	buf.WriteByte('\n')
}

// upgrade rewrites a log whose header lacks canonical columns into the canonical
// layout, followed by any unrecognized columns of the old header. Values are carried
// over unchanged. Rows that were already unreadable stay only in the backup kept at
// <path>.v<N>.bak. The new file replaces the old one via temp file, fsync and rename.
func (s *Store) upgrade(ctx context.Context) error {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	from, ok := parseHeader(header)
	if !ok || !from.lacksCanonicalColumns() {
		return nil
	}
	to := from.upgraded()

	var buf bytes.Buffer
	writeHeader(&buf, to)
	var rows, dropped int
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return err
			}
			dropped++
			continue
		}
		if len(record) != len(from.columns) {
			dropped++
			continue
		}
		writeRawRow(&buf, to, remapRow(from, to, record))
		rows++
	}

	info, err := f.Stat()
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".upgrade-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if err := writeAll(tmp, buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		os.Remove(tmpName)
		return err
	}

	backup := fmt.Sprintf("%s.v%d.bak", s.path, from.version)
	if err := os.Link(s.path, backup); err != nil {
		slog.Warn("[CSVStore] Could not keep a backup of the legacy log",
			"path", s.path,
			"backup", backup,
			"error", err,
		)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}

	slog.Info("[CSVStore] Upgraded history log to canonical layout",
		"path", s.path,
		"from_version", from.version,
		"rows", rows,
		"dropped_unreadable_rows", dropped,
		"backup", backup,
	)
	return nil
}

// writeRawRow writes already-stringified values, quoting text columns like encodeRow.
func writeRawRow(buf *bytes.Buffer, lay layout, record []string) {
	for i, col := range lay.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		if col == colPrice {
			writeField(buf, record[i])
		} else {
			writeQuoted(buf, record[i])
		}
	}
	buf.WriteByte('\n')
}

// writeField quotes s only when it would otherwise break the record.
func writeField(buf *bytes.Buffer, s string) {
	if strings.ContainsAny(s, ",\"\r\n") || strings.TrimSpace(s) != s {
		writeQuoted(buf, s)
		return
	}
	buf.WriteString(s)
}

func writeQuoted(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	buf.WriteString(strings.ReplaceAll(s, `"`, `""`))
	buf.WriteByte('"')
}
