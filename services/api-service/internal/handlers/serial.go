package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/md-rashed-zaman/medserial/libs/auth"
	"github.com/md-rashed-zaman/medserial/libs/httpx"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/metrics"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/model"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/serial"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/storage"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

type SerialStore interface {
	Current(ctx context.Context, doctorID, date string) (serial.Snapshot, error)
	Next(ctx context.Context, doctorID, date string) (serial.Snapshot, error)
	Prev(ctx context.Context, doctorID, date string) (serial.Snapshot, error)
	Reset(ctx context.Context, doctorID, date string) (serial.Snapshot, error)
	Subscribe(ctx context.Context, doctorID, date string) (serial.Subscription, error)
}

type SerialHandler struct {
	store    SerialStore
	doctors  DoctorLookup
	loc      *time.Location
	upgrader websocket.Upgrader
	logger   *slog.Logger
	now      func() time.Time

	closing   chan struct{}
	closeOnce sync.Once
}

// NewSerialHandler defaults an omitted ?date= to today in loc. Stream upgrades accept the
// given origins ("*" for any); with none, gorilla's same-origin check applies.
func NewSerialHandler(store SerialStore, doctors DoctorLookup, loc *time.Location, origins []string, logger *slog.Logger) *SerialHandler {
	if loc == nil {
		loc = time.UTC
	}
	h := &SerialHandler{
		store:   store,
		doctors: doctors,
		loc:     loc,
		logger:  logger,
		now:     time.Now,
		closing: make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}
	if len(origins) > 0 {
		h.upgrader.CheckOrigin = originChecker(origins)
	}
	return h
}

// Shutdown ends open streams. http.Server.Shutdown does not track hijacked connections.
func (h *SerialHandler) Shutdown() {
	h.closeOnce.Do(func() { close(h.closing) })
}

func (h *SerialHandler) Get(w http.ResponseWriter, r *http.Request) {
	doctorID, date, ok := h.params(w, r)
	if !ok {
		return
	}
	snap, err := h.store.Current(r.Context(), doctorID, date)
	if err != nil {
		h.logger.Error("serial read failed", "doctor_id", doctorID, "err", err)
		http.Error(w, "serial store unavailable", http.StatusServiceUnavailable)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, snap)
}

func (h *SerialHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "next", h.store.Next)
}

func (h *SerialHandler) Prev(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "prev", h.store.Prev)
}

func (h *SerialHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "reset", h.store.Reset)
}

type serialOp func(ctx context.Context, doctorID, date string) (serial.Snapshot, error)

func (h *SerialHandler) change(w http.ResponseWriter, r *http.Request, action string, op serialOp) {
	doctorID, date, ok := h.params(w, r)
	if !ok {
		return
	}
	if !h.authorizeDoctor(w, r, doctorID) {
		return
	}

	snap, err := op(r.Context(), doctorID, date)
	if err != nil {
		h.logger.Error("serial change failed", "action", action, "doctor_id", doctorID, "err", err)
		http.Error(w, "serial store unavailable", http.StatusServiceUnavailable)
		return
	}
	metrics.SerialChanges.WithLabelValues(action).Inc()
	h.logger.Info("serial changed",
		"action", action,
		"doctor_id", doctorID,
		"date", date,
		"current", snap.Current,
		"by", r.Header.Get(HeaderUserID),
	)
	httpx.WriteJSON(w, http.StatusOK, snap)
}

// authorizeDoctor lets admins drive any counter and doctors only their own.
func (h *SerialHandler) authorizeDoctor(w http.ResponseWriter, r *http.Request, doctorID string) bool {
	userID, role := identity(r)
	if role == auth.RoleAdmin {
		return true
	}
	if role != auth.RoleDoctor {
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	d, err := h.doctors.Get(r.Context(), doctorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "doctor not found", http.StatusNotFound)
			return false
		}
		h.logger.Error("doctor lookup failed", "err", err)
		http.Error(w, "failed to load doctor", http.StatusInternalServerError)
		return false
	}
	if d.UserID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}

// Stream pushes the current snapshot and then every change until the client goes away.
func (h *SerialHandler) Stream(w http.ResponseWriter, r *http.Request) {
	doctorID, date, ok := h.params(w, r)
	if !ok {
		return
	}

	// Subscribe before reading so a change between the two is not lost.
	sub, err := h.store.Subscribe(r.Context(), doctorID, date)
	if err != nil {
		h.logger.Error("serial subscribe failed", "doctor_id", doctorID, "err", err)
		http.Error(w, "serial store unavailable", http.StatusServiceUnavailable)
		return
	}
	defer func() { _ = sub.Close() }()

	current, err := h.store.Current(r.Context(), doctorID, date)
	if err != nil {
		h.logger.Error("serial read failed", "doctor_id", doctorID, "err", err)
		http.Error(w, "serial store unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	metrics.SerialStreams.Inc()
	defer metrics.SerialStreams.Dec()

	gone := make(chan struct{})
	go readUntilClosed(conn, gone)

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	if err := writeSnapshot(conn, current); err != nil {
		return
	}
	for {
		select {
		case <-gone:
			return
		case <-h.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(streamWriteWait))
			return
		case snap, ok := <-sub.Updates():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "serial feed ended"),
					time.Now().Add(streamWriteWait))
				return
			}
			if err := writeSnapshot(conn, snap); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap serial.Snapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(snap)
}

// readUntilClosed drains client frames so pongs and close frames are processed.
func readUntilClosed(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *SerialHandler) params(w http.ResponseWriter, r *http.Request) (doctorID, date string, ok bool) {
	doctorID = strings.TrimSpace(chi.URLParam(r, "id"))
	if doctorID == "" {
		http.Error(w, "doctor id required", http.StatusBadRequest)
		return "", "", false
	}
	date = strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		return doctorID, h.now().In(h.loc).Format(model.DateLayout), true
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
		return "", "", false
	}
	return doctorID, date, true
}

func originChecker(origins []string) func(*http.Request) bool {
	allowed := map[string]struct{}{}
	for _, o := range origins {
		allowed[strings.TrimRight(strings.TrimSpace(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		if _, ok := allowed["*"]; ok {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
