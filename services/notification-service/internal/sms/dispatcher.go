package sms

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Result is the outcome of one dispatch. Exactly one of Payload or Err is meaningful.
type Result struct {
	AppointmentID string
	Success       bool
	Payload       string
	Err           error
}

type Dispatcher struct {
	sender  Sender
	limiter *rate.Limiter
}

// NewDispatcher throttles sends to ratePerSecond when it is positive. The limiter waits
// rather than drops.
func NewDispatcher(sender Sender, ratePerSecond float64) *Dispatcher {
	d := &Dispatcher{sender: sender}
	if ratePerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return d
}

func (d *Dispatcher) ProviderID() string {
	return d.sender.ProviderID()
}

// Dispatch makes one attempt and never panics or returns an error directly.
func (d *Dispatcher) Dispatch(ctx context.Context, appointmentID, phone, message string) (res Result) {
	res.AppointmentID = appointmentID
	defer func() {
		if r := recover(); r != nil {
			res = Result{AppointmentID: appointmentID, Err: fmt.Errorf("sms dispatch panic: %v", r)}
		}
	}()

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			res.Err = fmt.Errorf("sms rate limiter: %w", err)
			return res
		}
	}

	payload, err := d.sender.Send(ctx, phone, message)
	if err != nil {
		res.Err = err
		return res
	}
	res.Success = true
	res.Payload = payload
	return res
}
