package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/model"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/serial"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func asUser(r *http.Request, userID, role string) *http.Request {
	r.Header.Set(HeaderUserID, userID)
	r.Header.Set(HeaderRole, role)
	return r
}

type fakeUsers struct {
	mu       sync.Mutex
	byID     map[string]model.User
	patients map[string]string
	err      error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]model.User{}, patients: map[string]string{}}
}

func (f *fakeUsers) CreatePatient(_ context.Context, u model.User) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.User{}, f.err
	}
	for _, existing := range f.byID {
		if strings.EqualFold(existing.Email, u.Email) {
			return model.User{}, storage.ErrDuplicateEmail
		}
	}
	u.ID = "user-" + u.Email
	u.Role = "patient"
	f.byID[u.ID] = u
	f.patients[u.ID] = "patient-" + u.Email
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return model.User{}, storage.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) PatientIDForUser(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.patients[userID]
	if !ok {
		return "", storage.ErrNotFound
	}
	return id, nil
}

type fakeDoctors struct {
	mu      sync.Mutex
	byID    map[string]model.Doctor
	created []model.User
}

func newFakeDoctors(doctors ...model.Doctor) *fakeDoctors {
	f := &fakeDoctors{byID: map[string]model.Doctor{}}
	for _, d := range doctors {
		f.byID[d.ID] = d
	}
	return f
}

func (f *fakeDoctors) Create(_ context.Context, u model.User, d model.Doctor) (model.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if strings.EqualFold(existing.Email, u.Email) {
			return model.Doctor{}, storage.ErrDuplicateEmail
		}
	}
	d.ID = "doc-" + u.Email
	d.UserID = "user-" + u.Email
	d.Email = u.Email
	d.Active = true
	f.byID[d.ID] = d
	f.created = append(f.created, u)
	return d, nil
}

func (f *fakeDoctors) Update(_ context.Context, d model.Doctor) (model.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.byID[d.ID]
	if !ok {
		return model.Doctor{}, storage.ErrNotFound
	}
	d.UserID, d.Email, d.Active = existing.UserID, existing.Email, existing.Active
	f.byID[d.ID] = d
	return d, nil
}

func (f *fakeDoctors) Deactivate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byID[id]
	if !ok {
		return storage.ErrNotFound
	}
	d.Active = false
	f.byID[id] = d
	return nil
}

func (f *fakeDoctors) Get(_ context.Context, id string) (model.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byID[id]
	if !ok {
		return model.Doctor{}, storage.ErrNotFound
	}
	return d, nil
}

func (f *fakeDoctors) GetByUserID(_ context.Context, userID string) (model.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.byID {
		if d.UserID == userID {
			return d, nil
		}
	}
	return model.Doctor{}, storage.ErrNotFound
}

func (f *fakeDoctors) List(_ context.Context, activeOnly bool) ([]model.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Doctor{}
	for _, d := range f.byID {
		if activeOnly && !d.Active {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

type fakeAppointments struct {
	mu        sync.Mutex
	byID      map[string]model.Appointment
	booked    []model.Appointment
	lastList  model.ListFilter
	bookErr   error
	cancelled int
	paid      map[string]string
	sessions  map[string]string
}

func newFakeAppointments(appts ...model.Appointment) *fakeAppointments {
	f := &fakeAppointments{
		byID:     map[string]model.Appointment{},
		paid:     map[string]string{},
		sessions: map[string]string{},
	}
	for _, a := range appts {
		f.byID[a.ID] = a
	}
	return f
}

func (f *fakeAppointments) Book(_ context.Context, patientID, doctorID string, date time.Time) (model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bookErr != nil {
		return model.Appointment{}, f.bookErr
	}
	a := model.Appointment{
		ID:        "appt-" + doctorID + "-" + date.Format(model.DateLayout),
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      date,
		Time:      "5:00 PM - 9:00 PM",
		Fee:       500,
		Location:  "Chamber 2",
		Serial:    len(f.booked) + 1,
		Status:    model.StatusBooked,
	}
	f.booked = append(f.booked, a)
	f.byID[a.ID] = a
	return a, nil
}

func (f *fakeAppointments) Get(_ context.Context, id string) (model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return model.Appointment{}, storage.ErrNotFound
	}
	return a, nil
}

func (f *fakeAppointments) List(_ context.Context, filter model.ListFilter) ([]model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = filter
	out := []model.Appointment{}
	for _, a := range f.byID {
		if filter.PatientID != "" && a.PatientID != filter.PatientID {
			continue
		}
		if filter.DoctorID != "" && a.DoctorID != filter.DoctorID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAppointments) Cancel(_ context.Context, id, _ string) (model.Appointment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return model.Appointment{}, false, storage.ErrNotFound
	}
	if a.Status == model.StatusCancelled {
		return a, false, nil
	}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	a.Status = model.StatusCancelled
	a.CancelledAt = &now
	f.byID[id] = a
	f.cancelled++
	return a, true, nil
}

func (f *fakeAppointments) SetCheckoutSession(_ context.Context, id, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id] = sessionID
	return nil
}

func (f *fakeAppointments) MarkPaid(_ context.Context, id, sessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	if a.Paid {
		return false, nil
	}
	a.Paid = true
	f.byID[id] = a
	f.paid[id] = sessionID
	return true, nil
}

type fakeSerial struct {
	mu      sync.Mutex
	values  map[string]int64
	updates chan serial.Snapshot
	closed  chan struct{}
}

func newFakeSerial() *fakeSerial {
	return &fakeSerial{
		values:  map[string]int64{},
		updates: make(chan serial.Snapshot, 4),
		closed:  make(chan struct{}),
	}
}

func (f *fakeSerial) set(doctorID, date string, v int64) serial.Snapshot {
	f.values[serial.Key(doctorID, date)] = v
	return serial.Snapshot{DoctorID: doctorID, Date: date, Current: v}
}

func (f *fakeSerial) Current(_ context.Context, doctorID, date string) (serial.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return serial.Snapshot{DoctorID: doctorID, Date: date, Current: f.values[serial.Key(doctorID, date)]}, nil
}

func (f *fakeSerial) Next(_ context.Context, doctorID, date string) (serial.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set(doctorID, date, f.values[serial.Key(doctorID, date)]+1), nil
}

func (f *fakeSerial) Prev(_ context.Context, doctorID, date string) (serial.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set(doctorID, date, max(f.values[serial.Key(doctorID, date)]-1, 0)), nil
}

func (f *fakeSerial) Reset(_ context.Context, doctorID, date string) (serial.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set(doctorID, date, 0), nil
}

func (f *fakeSerial) Subscribe(context.Context, string, string) (serial.Subscription, error) {
	return f, nil
}

func (f *fakeSerial) Updates() <-chan serial.Snapshot { return f.updates }

func (f *fakeSerial) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

func modelUser(id, email, hash string) model.User {
	return model.User{ID: id, Email: email, Name: "User " + id, PasswordHash: hash, Role: "patient"}
}
