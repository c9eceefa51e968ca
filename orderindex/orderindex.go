// Package orderindex loads the optional manual ordering CSV that pins
// posts to a hand-curated rank in the feed.
package orderindex

import (
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
)

// Load reads a rank,url,id CSV (no header) into an id → rank lookup.
// Manual ordering is optional: a missing or unreadable file yields an
// empty lookup, and malformed lines are skipped.
func Load(path string, logger *slog.Logger) map[string]int {
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Order CSV unreadable, continuing without manual ordering", "path", path, "error", err)
		}
		return map[string]int{}
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logger.Warn("Failed to close order CSV", "error", closeErr)
		}
	}()

	index := Parse(f)
	logger.Info("Order index loaded", "path", path, "entries", len(index))
	return index
}

// Parse parses rank,url,id lines. Quoted fields are unquoted by the CSV
// reader; lines with a non-finite rank or an empty id are dropped.
func Parse(r io.Reader) map[string]int {
	index := make(map[string]int)

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Malformed line; the reader resumes at the next one.
			continue
		}
		if len(record) < 3 {
			continue
		}

		rank, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
		if err != nil || math.IsNaN(rank) || math.IsInf(rank, 0) {
			// ParseFloat accepts "NaN" and "Inf" spellings; a non-finite
			// rank cannot convert to an int.
			continue
		}
		id := strings.TrimSpace(record[2])
		if id == "" {
			continue
		}
		index[id] = int(rank)
	}

	return index
}
