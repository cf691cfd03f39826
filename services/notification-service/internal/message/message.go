// Package message renders the reminder SMS body.
package message

import "fmt"

// DateLayout renders appointment dates as "12 Jun 2024".
const DateLayout = "02 Jan 2006"

// Details are the appointment fields shown in a reminder.
type Details struct {
	DoctorName string
	Date       string
	Time       string
	Fee        float64
	Address    string
}

const reminderTemplate = `Appointment Reminder
You have an appointment with Dr. %s
Date: %s
Time: %s
Fee: %.2f Taka
Address: %s
Please arrive 15 minutes early with your serial number.`

// Format renders the reminder SMS. Fields are inserted as given.
func Format(d Details) string {
	return fmt.Sprintf(reminderTemplate, d.DoctorName, d.Date, d.Time, d.Fee, d.Address)
}
