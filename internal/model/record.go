package model

// RawRecord is one observation as returned by a source, before parsing.
type RawRecord struct {
	ID         string // patient identifier, opaque
	VitalSigns string // free text: temperature, systolic, diastolic, heart rate, respiratory rate
	Timestamp  string // opaque timestamp token
}
