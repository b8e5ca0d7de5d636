package model

// Row is a parsed observation: identifier, the five vital-sign features in
// schema order, and the timestamp. Row is comparable; two rows are duplicates
// iff they are ==.
type Row struct {
	ID        string
	Features  [FeatureWidth]float64
	Timestamp string
}

// Prediction is a Row with the label the predictor assigned to it.
type Prediction struct {
	Row
	Label string
}
