package model

import "time"

// DueAppointment is one reminder candidate joined with its patient's phone and its
// doctor's display name. Missing joined values are empty strings.
type DueAppointment struct {
	ID           string
	Date         time.Time
	Time         string
	Fee          float64
	Location     string
	PatientPhone string
	DoctorName   string
}

// UpdateResult is the raw outcome of the bulk notified update.
type UpdateResult struct {
	Count int64 `json:"count"`
}
