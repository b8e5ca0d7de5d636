package output

import "github.com/hejijunhao/vitals/internal/model"

// Record is the wire form of one prediction, keyed by the dataset column names.
type Record struct {
	RunID        string  `json:"run_id"`
	PatientID    string  `json:"pat_id"`
	BodyTemp     float64 `json:"body_temp"`
	BloodPresSys float64 `json:"blood_pres_sys"`
	BloodPresDia float64 `json:"blood_pres_dia"`
	HeartRate    float64 `json:"heart_rate"`
	RespRate     float64 `json:"resp_rate"`
	Timestamp    string  `json:"time_stmp"`
	Prediction   string  `json:"predic"`
}

// FormatRecord converts one prediction to its wire form.
func FormatRecord(runID string, p model.Prediction) Record {
	f := p.Features
	return Record{
		RunID:        runID,
		PatientID:    p.ID,
		BodyTemp:     f[0],
		BloodPresSys: f[1],
		BloodPresDia: f[2],
		HeartRate:    f[3],
		RespRate:     f[4],
		Timestamp:    p.Timestamp,
		Prediction:   p.Label,
	}
}

// Records converts every prediction in the batch.
func Records(b Batch) []Record {
	out := make([]Record, len(b.Predictions))
	for i, p := range b.Predictions {
		out[i] = FormatRecord(b.RunID, p)
	}
	return out
}
