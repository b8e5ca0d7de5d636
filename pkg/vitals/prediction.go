package vitals

import (
	"github.com/hejijunhao/vitals/internal/engine/predictor"
	"github.com/hejijunhao/vitals/internal/model"
)

// Prediction is one distinct vital-sign row with its predicted label.
// This is the stable public type; internal representations may evolve
// independently.
type Prediction struct {
	PatientID    string  `json:"pat_id"`
	BodyTemp     float64 `json:"body_temp"`
	BloodPresSys float64 `json:"blood_pres_sys"`
	BloodPresDia float64 `json:"blood_pres_dia"`
	HeartRate    float64 `json:"heart_rate"`
	RespRate     float64 `json:"resp_rate"`
	Timestamp    string  `json:"time_stmp"`
	Label        string  `json:"predic"`
}

// Alarm reports whether the label is the alarm label "1".
func (p Prediction) Alarm() bool {
	return p.Label == predictor.LabelAlarm
}

// Result summarises a completed run.
type Result struct {
	RunID       string
	Cycles      int
	Collected   int // rows fetched, duplicates included
	Unique      int
	Path        string
	Predictions []Prediction
}

func predictionFromModel(p model.Prediction) Prediction {
	f := p.Features
	return Prediction{
		PatientID:    p.ID,
		BodyTemp:     f[0],
		BloodPresSys: f[1],
		BloodPresDia: f[2],
		HeartRate:    f[3],
		RespRate:     f[4],
		Timestamp:    p.Timestamp,
		Label:        p.Label,
	}
}
