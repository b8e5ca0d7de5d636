package source

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/hejijunhao/vitals/internal/model"
)

// wireRecord mirrors one element of the record array. id and timestamp may be
// strings or numbers; they are kept as raw JSON and rendered as text.
type wireRecord struct {
	ID         json.RawMessage `json:"id"`
	VitalSigns *string         `json:"vital_signs"`
	Timestamp  json.RawMessage `json:"timestamp"`
}

// DecodeRecords extracts the record array stored under key from a JSON
// document. Any shape violation is reported as ErrSchema.
func DecodeRecords(body []byte, key string) ([]model.RawRecord, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: body is not a JSON object: %v", ErrSchema, err)
	}
	rawList, ok := doc[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing top-level key %q", ErrSchema, key)
	}
	if bytes.Equal(bytes.TrimSpace(rawList), []byte("null")) {
		return nil, fmt.Errorf("%w: key %q is null", ErrSchema, key)
	}

	var items []wireRecord
	if err := json.Unmarshal(rawList, &items); err != nil {
		return nil, fmt.Errorf("%w: key %q is not an array of records: %v", ErrSchema, key, err)
	}

	records := make([]model.RawRecord, 0, len(items))
	for i, it := range items {
		if it.VitalSigns == nil {
			return nil, fmt.Errorf("%w: record %d has no \"vital_signs\" string", ErrSchema, i)
		}
		id, err := scalarText(it.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d field \"id\": %v", ErrSchema, i, err)
		}
		ts, err := scalarText(it.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d field \"timestamp\": %v", ErrSchema, i, err)
		}
		records = append(records, model.RawRecord{
			ID:         id,
			VitalSigns: *it.VitalSigns,
			Timestamp:  ts,
		})
	}
	return records, nil
}

// scalarText renders a JSON string or number as text. Absent and null
// values render as "".
func scalarText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return "", fmt.Errorf("expected string or number, got %s", raw)
	}
}
