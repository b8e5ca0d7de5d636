package model

// FeatureWidth is the number of numeric features every row carries.
const FeatureWidth = 5

// Feature column names in the order they appear in the vital-signs blob.
var FeatureNames = [FeatureWidth]string{
	"body_temp",
	"blood_pres_sys",
	"blood_pres_dia",
	"heart_rate",
	"resp_rate",
}

// Header returns the output column names: identifier, features, timestamp, prediction.
func Header() []string {
	h := make([]string, 0, FeatureWidth+3)
	h = append(h, "pat_id")
	h = append(h, FeatureNames[:]...)
	h = append(h, "time_stmp", "predic")
	return h
}
