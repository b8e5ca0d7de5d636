// Package csvfile writes a run's predictions as a delimited dataset.
//
// The file is written with a single open/write/close and no atomic rename:
// a failure part-way through leaves a truncated file behind.
package csvfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hejijunhao/vitals/internal/model"
)

// Delimiter separates values on every line, header included.
const Delimiter = ", "

// DefaultPath is used when the caller supplies no output path.
const DefaultPath = "predictions.csv"

// RunToken in a path is replaced with the run ID by ExpandPath.
const RunToken = "{run}"

const defaultBufSize = 64 * 1024 // 64KB

// ExpandPath substitutes runID for RunToken and falls back to DefaultPath.
func ExpandPath(path, runID string) string {
	if path == "" {
		path = DefaultPath
	}
	return strings.ReplaceAll(path, RunToken, runID)
}

// Persist creates (or truncates) path and writes the header plus one line
// per prediction.
func Persist(results []model.Prediction, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("csvfile: open %s: %w", path, err)
	}
	w := bufio.NewWriterSize(f, defaultBufSize)
	if err := Write(w, results); err != nil {
		f.Close()
		return fmt.Errorf("csvfile: write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("csvfile: flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("csvfile: close %s: %w", path, err)
	}
	return nil
}

// Write encodes the header and results to w.
func Write(w io.Writer, results []model.Prediction) error {
	if err := writeLine(w, model.Header()); err != nil {
		return err
	}
	fields := make([]string, 0, model.FeatureWidth+3)
	for _, p := range results {
		fields = fields[:0]
		fields = append(fields, quote(p.ID))
		for _, v := range p.Features {
			fields = append(fields, FormatFloat(v))
		}
		fields = append(fields, quote(p.Timestamp), quote(p.Label))
		if err := writeLine(w, fields); err != nil {
			return err
		}
	}
	return nil
}

// FormatFloat renders v with the fewest digits that round-trip, never in
// exponent form.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeLine(w io.Writer, fields []string) error {
	_, err := io.WriteString(w, strings.Join(fields, Delimiter)+"\n")
	return err
}

// quote wraps s in double quotes when it contains a comma, quote or line
// break, doubling embedded quotes.
func quote(s string) string {
	if !strings.ContainsAny(s, ",\"\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
