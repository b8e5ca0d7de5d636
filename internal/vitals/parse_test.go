package vitals

import (
	"errors"
	"math"
	"testing"

	"github.com/hejijunhao/vitals/internal/model"
)

func TestParse(t *testing.T) {
	raw := model.RawRecord{ID: "P1", VitalSigns: "36.6 120 80 75 16", Timestamp: "t1"}
	row, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := model.Row{ID: "P1", Features: [5]float64{36.6, 120, 80, 75, 16}, Timestamp: "t1"}
	if row != want {
		t.Fatalf("Parse = %+v, want %+v", row, want)
	}
}

func TestParseDeterministic(t *testing.T) {
	raw := model.RawRecord{ID: "P7", VitalSigns: "T 38.1 BP 140/95 HR 110 RR 22", Timestamp: "2026-10-18T08:00:00Z"}
	first, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := Parse(raw)
		if err != nil {
			t.Fatalf("iteration %d: unexpected error: %v", i, err)
		}
		if again != first {
			t.Fatalf("iteration %d: %+v != %+v", i, again, first)
		}
	}
}

func TestParseWidthError(t *testing.T) {
	for _, blob := range []string{"", "36.6", "36.6 120 80 75"} {
		_, err := Parse(model.RawRecord{ID: "P2", VitalSigns: blob})
		if !errors.Is(err, ErrParseWidth) {
			t.Fatalf("blob %q: expected ErrParseWidth, got %v", blob, err)
		}
		var we *WidthError
		if !errors.As(err, &we) {
			t.Fatalf("blob %q: expected *WidthError, got %T", blob, err)
		}
		if we.ID != "P2" {
			t.Errorf("blob %q: WidthError.ID = %q, want P2", blob, we.ID)
		}
	}
}

func TestParseExtraTokensIgnored(t *testing.T) {
	row, toks, err := ParseTokens(model.RawRecord{ID: "P3", VitalSigns: "36.6 120 80 75 16 97 2", Timestamp: "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(row.Features) != model.FeatureWidth {
		t.Fatalf("expected %d features, got %d", model.FeatureWidth, len(row.Features))
	}
	if row.Features[4] != 16 {
		t.Fatalf("expected fifth feature 16, got %v", row.Features[4])
	}
	if toks.Extra() != 2 {
		t.Fatalf("Extra() = %d, want 2", toks.Extra())
	}
}

func TestParseFoldsNegativeZero(t *testing.T) {
	a, err := Parse(model.RawRecord{ID: "P4", VitalSigns: "-0 120 80 75 16"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := Parse(model.RawRecord{ID: "P4", VitalSigns: "0 120 80 75 16"})
	if math.Signbit(a.Features[0]) {
		t.Fatal("expected -0 folded to +0")
	}
	if a != b {
		t.Fatalf("expected equal rows, got %+v and %+v", a, b)
	}
}
