package model

import "time"

const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
)

// DateLayout is the wire and storage format of appointment dates.
const DateLayout = "2006-01-02"

type User struct {
	ID           string
	AuthUID      string
	Name         string
	Email        string
	Phone        string
	ImageURL     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type Doctor struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone,omitempty"`
	Specialty     string  `json:"specialty"`
	Location      string  `json:"location"`
	Fee           float64 `json:"fee"`
	VisitingHours string  `json:"visiting_hours"`
	Active        bool    `json:"active"`
}

type Appointment struct {
	ID            string
	PatientID     string
	PatientUserID string
	PatientName   string
	DoctorID      string
	DoctorUserID  string
	DoctorName    string
	Date          time.Time
	Time          string
	Fee           float64
	Location      string
	Serial        int
	Status        string
	Notified      bool
	Paid          bool
	CancelledAt   *time.Time
	CreatedAt     time.Time
}

type ListFilter struct {
	PatientID string
	DoctorID  string
	Limit     int
}
