// Package vitals turns raw observation records into fixed-width feature rows.
package vitals

import (
	"errors"
	"fmt"

	"github.com/hejijunhao/vitals/internal/model"
)

// ErrParseWidth reports a vital-signs blob with fewer numeric tokens than
// model.FeatureWidth.
var ErrParseWidth = errors.New("vitals: too few numeric tokens")

// WidthError carries the record that failed the width check.
type WidthError struct {
	ID   string
	Blob string
	Got  int
}

func (e *WidthError) Error() string {
	return fmt.Sprintf("vitals: record %q has %d numeric tokens, want %d (blob %q)",
		e.ID, e.Got, model.FeatureWidth, e.Blob)
}

func (e *WidthError) Unwrap() error { return ErrParseWidth }

// Parse converts raw into a Row: identifier, the first five numeric tokens of
// the vital-signs blob, timestamp. Tokens beyond the fifth are ignored.
func Parse(raw model.RawRecord) (model.Row, error) {
	row, _, err := ParseTokens(raw)
	return row, err
}

// ParseTokens is Parse but also returns the tokenizer result so callers can
// inspect extras.
func ParseTokens(raw model.RawRecord) (model.Row, Tokens, error) {
	toks := Tokenize(raw.VitalSigns)
	features, ok := toks.Features()
	if !ok {
		return model.Row{}, toks, &WidthError{ID: raw.ID, Blob: raw.VitalSigns, Got: len(toks.Values)}
	}
	for i, v := range features {
		if v == 0 {
			features[i] = 0 // fold -0 so equal readings compare equal
		}
	}
	return model.Row{
		ID:        raw.ID,
		Features:  features,
		Timestamp: raw.Timestamp,
	}, toks, nil
}
