package dataset

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rulings-explorer/backend/pkg/logger"
)

var (
	ErrSourceMissing    = errors.New("source file not found")
	ErrSourceUnparsable = errors.New("source file could not be parsed")
)

type LoadOptions struct {
	// FillMissing replaces missing cells (NA tokens) with "".
	FillMissing bool
	// StripHTML reduces cells that carry markup to their text. Cells are
	// then no longer byte-for-byte what the file holds, so it is opt-in.
	StripHTML bool
}

func DefaultLoadOptions() LoadOptions {
	return LoadOptions{FillMissing: true}
}

// naTokens are the cell values read as missing.
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsMissing reports whether v is an empty or NA cell.
func IsMissing(v string) bool {
	_, ok := naTokens[v]
	return ok
}

// Load reads the CSV at path. A missing file wraps ErrSourceMissing; an
// empty file or a malformed row wraps ErrSourceUnparsable.
func Load(path string, opt LoadOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	ds, err := Parse(path, f, opt)
	if err != nil {
		return nil, err
	}

	logger.Info("Dataset loaded",
		zap.String("path", path),
		zap.Int("rows", ds.Len()),
		zap.Strings("columns", ds.Columns),
	)
	return ds, nil
}

// Parse reads CSV content from r. source is only used for naming.
func Parse(source string, r io.Reader, opt LoadOptions) (*Dataset, error) {
	h := sha256.New()
	cr := csv.NewReader(io.TeeReader(r, h))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s has no header row", ErrSourceUnparsable, source)
		}
		return nil, fmt.Errorf("%w: header: %v", ErrSourceUnparsable, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	columns := dedupeColumns(header)

	var rows []Record
	for n := 1; ; n++ {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: %v", ErrSourceUnparsable, err)
		}
		if len(rec) > len(columns) {
			return nil, fmt.Errorf("%w: row %d: expected %d fields, saw %d",
				ErrSourceUnparsable, n, len(columns), len(rec))
		}
		row := make(Record, len(columns))
		for i := range row {
			if i >= len(rec) {
				continue
			}
			row[i] = cleanCell(rec[i], opt)
		}
		rows = append(rows, row)
	}

	ds := New(source, columns, rows)
	ds.fingerprint = hex.EncodeToString(h.Sum(nil))
	return ds, nil
}

func cleanCell(v string, opt LoadOptions) string {
	if opt.FillMissing && IsMissing(v) {
		return ""
	}
	if opt.StripHTML {
		v = stripMarkup(v)
	}
	return v
}

// dedupeColumns renames repeated headers X, X -> X, X.1 so every column
// stays addressable by name.
func dedupeColumns(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		name := h
		if n, ok := seen[h]; ok {
			for {
				n++
				name = h + "." + strconv.Itoa(n)
				if _, taken := seen[name]; !taken {
					break
				}
			}
			seen[h] = n
		}
		if _, ok := seen[name]; !ok {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}
