// Package serial keeps the "now serving" number per doctor and day in Redis and fans
// changes out over pub/sub so every open screen follows the same counter.
package serial

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshot is both the HTTP response body and the pub/sub message.
type Snapshot struct {
	DoctorID  string    `json:"doctor_id"`
	Date      string    `json:"date"`
	Current   int64     `json:"current"`
	UpdatedAt time.Time `json:"updated_at"`
}

func Key(doctorID, date string) string {
	return fmt.Sprintf("serial:%s:%s", doctorID, date)
}

func Channel(doctorID, date string) string {
	return fmt.Sprintf("serial-updates:%s:%s", doctorID, date)
}

// KEYS[1]=counter ARGV[1]=ttl seconds. Never goes below zero.
var decrementFloorScript = redis.NewScript(`
local v = tonumber(redis.call('GET', KEYS[1]) or '0')
if v <= 0 then
  redis.call('SET', KEYS[1], 0, 'EX', tonumber(ARGV[1]))
  return 0
end
v = redis.call('DECR', KEYS[1])
redis.call('EXPIRE', KEYS[1], tonumber(ARGV[1]))
return v
`)

type Store struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewStore keeps counters for ttl after their last change so past days age out.
func NewStore(rdb redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl, logger: logger, now: time.Now}
}

func (s *Store) Current(ctx context.Context, doctorID, date string) (Snapshot, error) {
	v, err := s.rdb.Get(ctx, Key(doctorID, date)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Snapshot{}, err
	}
	return s.snapshot(doctorID, date, v), nil
}

func (s *Store) Next(ctx context.Context, doctorID, date string) (Snapshot, error) {
	key := Key(doctorID, date)
	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return s.publish(ctx, s.snapshot(doctorID, date, incr.Val())), nil
}

func (s *Store) Prev(ctx context.Context, doctorID, date string) (Snapshot, error) {
	v, err := decrementFloorScript.Run(ctx, s.rdb, []string{Key(doctorID, date)}, int64(s.ttl/time.Second)).Int64()
	if err != nil {
		return Snapshot{}, err
	}
	return s.publish(ctx, s.snapshot(doctorID, date, v)), nil
}

func (s *Store) Reset(ctx context.Context, doctorID, date string) (Snapshot, error) {
	if err := s.rdb.Set(ctx, Key(doctorID, date), 0, s.ttl).Err(); err != nil {
		return Snapshot{}, err
	}
	return s.publish(ctx, s.snapshot(doctorID, date, 0)), nil
}

func (s *Store) snapshot(doctorID, date string, v int64) Snapshot {
	return Snapshot{DoctorID: doctorID, Date: date, Current: v, UpdatedAt: s.now().UTC()}
}

// publish is best effort: the counter already moved, so a lost fan-out only delays
// viewers until their next snapshot.
func (s *Store) publish(ctx context.Context, snap Snapshot) Snapshot {
	b, err := json.Marshal(snap)
	if err == nil {
		err = s.rdb.Publish(ctx, Channel(snap.DoctorID, snap.Date), b).Err()
	}
	if err != nil {
		s.logger.Warn("serial publish failed", "doctor_id", snap.DoctorID, "date", snap.Date, "err", err)
	}
	return snap
}

type Subscription interface {
	Updates() <-chan Snapshot
	Close() error
}

// Subscribe returns once Redis has confirmed the subscription, so no change published
// after it returns is missed.
func (s *Store) Subscribe(ctx context.Context, doctorID, date string) (Subscription, error) {
	ps := s.rdb.Subscribe(ctx, Channel(doctorID, date))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &pubsubSubscription{
		ps:   ps,
		out:  make(chan Snapshot, 8),
		done: make(chan struct{}),
	}
	go sub.forward(ps.Channel(), s.logger)
	return sub, nil
}

type pubsubSubscription struct {
	ps        *redis.PubSub
	out       chan Snapshot
	done      chan struct{}
	closeOnce sync.Once
}

func (p *pubsubSubscription) Updates() <-chan Snapshot { return p.out }

func (p *pubsubSubscription) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.ps.Close()
	})
	return err
}

func (p *pubsubSubscription) forward(in <-chan *redis.Message, logger *slog.Logger) {
	defer close(p.out)
	for {
		select {
		case <-p.done:
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			snap, err := decodeSnapshot(msg.Payload)
			if err != nil {
				logger.Warn("serial update dropped", "channel", msg.Channel, "err", err)
				continue
			}
			select {
			case p.out <- snap:
			case <-p.done:
				return
			}
		}
	}
}

func decodeSnapshot(payload string) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return Snapshot{}, err
	}
	if snap.DoctorID == "" || snap.Date == "" {
		return Snapshot{}, errors.New("snapshot missing doctor_id or date")
	}
	return snap, nil
}
