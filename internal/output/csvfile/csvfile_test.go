package csvfile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hejijunhao/vitals/internal/model"
)

const wantHeader = "pat_id, body_temp, blood_pres_sys, blood_pres_dia, heart_rate, resp_rate, time_stmp, predic"

func prediction(id, ts, label string, f [5]float64) model.Prediction {
	return model.Prediction{Row: model.Row{ID: id, Features: f, Timestamp: ts}, Label: label}
}

func TestPersistWritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	results := []model.Prediction{
		prediction("P1", "t1", "0", [5]float64{36.6, 120, 80, 75, 16}),
		prediction("P2", "t2", "1", [5]float64{39.25, 88, 52.5, 131, 27}),
	}
	if err := Persist(results, path); err != nil {
		t.Fatalf("Persist error: %v", err)
	}

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), data)
	}
	if lines[0] != wantHeader {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "P1, 36.6, 120, 80, 75, 16, t1, 0" {
		t.Errorf("row 1 = %q", lines[1])
	}
	if lines[2] != "P2, 39.25, 88, 52.5, 131, 27, t2, 1" {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestPersistTruncatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	os.WriteFile(path, []byte(strings.Repeat("stale line\n", 100)), 0644)

	if err := Persist([]model.Prediction{prediction("P1", "t1", "0", [5]float64{1, 2, 3, 4, 5})}, path); err != nil {
		t.Fatalf("Persist error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "stale") {
		t.Fatal("expected existing content to be replaced")
	}
}

func TestPersistHeaderOnlyForNoRows(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if buf.String() != wantHeader+"\n" {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestPersistOpenError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "out.csv")
	err := Persist(nil, path)
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped ErrNotExist, got %v", err)
	}
}

func TestQuoting(t *testing.T) {
	var buf bytes.Buffer
	results := []model.Prediction{
		prediction(`Doe, "J"`, "2026-10-18 08:00", "alarm\nhigh", [5]float64{36.6, 120, 80, 75, 16}),
	}
	if err := Write(&buf, results); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	want := `"Doe, ""J""", 36.6, 120, 80, 75, 16, 2026-10-18 08:00, "alarm` + "\n" + `high"` + "\n"
	got := strings.TrimPrefix(buf.String(), wantHeader+"\n")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFormatFloat(t *testing.T) {
	tests := map[float64]string{
		36.6:   "36.6",
		120:    "120",
		-2.5:   "-2.5",
		1e21:   "1000000000000000000000",
		0.0001: "0.0001",
	}
	for in, want := range tests {
		if got := FormatFloat(in); got != want {
			t.Errorf("FormatFloat(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestExpandPath(t *testing.T) {
	if got := ExpandPath("", "abc"); got != DefaultPath {
		t.Errorf("ExpandPath(\"\") = %q, want %q", got, DefaultPath)
	}
	if got := ExpandPath("out/{run}.csv", "abc"); got != "out/abc.csv" {
		t.Errorf("ExpandPath = %q", got)
	}
	if got := ExpandPath("fixed.csv", "abc"); got != "fixed.csv" {
		t.Errorf("ExpandPath = %q", got)
	}
}
