package email

import (
	"bytes"
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var bookingTemplate = template.Must(template.ParseFS(templateFS, "templates/booking_confirmation.html"))

type BookingConfirmation struct {
	PatientName string
	DoctorName  string
	Date        string
	Time        string
	Serial      int
	Fee         float64
	Location    string
}

func RenderBookingConfirmation(data BookingConfirmation) (string, error) {
	var buf bytes.Buffer
	if err := bookingTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
