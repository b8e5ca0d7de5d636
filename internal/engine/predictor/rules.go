package predictor

import (
	"context"
	"fmt"

	"github.com/hejijunhao/vitals/internal/model"
)

// DefaultAlarmThreshold is the aggregate early-warning score at which a row
// is labelled an alarm.
const DefaultAlarmThreshold = 5

// Rules scores each row with an aggregate early-warning score over
// temperature, systolic pressure, heart rate and respiratory rate. A row is an
// alarm when the total reaches Threshold or any single parameter scores 3.
type Rules struct {
	Threshold int
}

// NewRules creates a Rules predictor. A threshold <= 0 uses DefaultAlarmThreshold.
func NewRules(threshold int) *Rules {
	if threshold <= 0 {
		threshold = DefaultAlarmThreshold
	}
	return &Rules{Threshold: threshold}
}

// band is an upper bound (inclusive) and the score for values up to it.
type band struct {
	upTo  float64
	score int
}

var (
	tempBands = []band{{35.0, 3}, {36.0, 1}, {38.0, 0}, {39.0, 1}}
	tempTop   = 2
	sysBands  = []band{{90, 3}, {100, 2}, {110, 1}, {219, 0}}
	sysTop    = 3
	hrBands   = []band{{40, 3}, {50, 1}, {90, 0}, {110, 1}, {130, 2}}
	hrTop     = 3
	rrBands   = []band{{8, 3}, {11, 1}, {20, 0}, {24, 2}}
	rrTop     = 3
)

func scoreOf(v float64, bands []band, top int) int {
	for _, b := range bands {
		if v <= b.upTo {
			return b.score
		}
	}
	return top
}

// Score returns the aggregate score for one feature row and whether any
// single parameter hit the maximum score of 3.
func Score(f [model.FeatureWidth]float64) (total int, redFlag bool) {
	scores := [...]int{
		scoreOf(f[0], tempBands, tempTop),
		scoreOf(f[1], sysBands, sysTop),
		scoreOf(f[3], hrBands, hrTop),
		scoreOf(f[4], rrBands, rrTop),
	}
	for _, s := range scores {
		total += s
		if s == 3 {
			redFlag = true
		}
	}
	return total, redFlag
}

// Predict labels every row LabelAlarm or LabelNormal.
func (r *Rules) Predict(_ context.Context, features [][]float64) ([]string, error) {
	labels := make([]string, len(features))
	for i, row := range features {
		if len(row) != model.FeatureWidth {
			return nil, fmt.Errorf("rules predictor: row %d has %d features, want %d", i, len(row), model.FeatureWidth)
		}
		var f [model.FeatureWidth]float64
		copy(f[:], row)
		total, red := Score(f)
		if red || total >= r.Threshold {
			labels[i] = LabelAlarm
		} else {
			labels[i] = LabelNormal
		}
	}
	return labels, nil
}
