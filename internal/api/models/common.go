// Package models holds the request and response bodies of the Swasthya
// Setu API.
package models

import (
	"encoding/json"
	"time"
)

// HealthStatus is the coarse state reported by the ops endpoints.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Timestamp is a time that serializes as RFC 3339 in UTC with second
// precision.
type Timestamp time.Time

func (t Timestamp) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, len(time.RFC3339)+2)
	buf = append(buf, '"')
	buf = time.Time(t).UTC().AppendFormat(buf, time.RFC3339)
	return append(buf, '"'), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// ListMeta carries the size of a returned list.
type ListMeta struct {
	Count int `json:"count"`
}
