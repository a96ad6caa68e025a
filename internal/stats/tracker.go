package stats

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spacesedan/sentibot/internal/models"
	"github.com/spacesedan/sentibot/internal/sentiment"
)

type UserCounters struct {
	Total     int
	Positive  int
	Negative  int
	Neutral   int
	StartTime time.Time
}

// Snapshot is the persisted part of the tracker. Service totals live only
// for the lifetime of the process.
type Snapshot struct {
	Users map[int64]UserCounters
}

type Tracker struct {
	mu       sync.Mutex
	users    map[int64]*UserCounters
	requests int
	positive int
	negative int
	neutral  int
	errors   int
	clock    clockwork.Clock
}

func NewTracker(clock clockwork.Clock) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{
		users: make(map[int64]*UserCounters),
		clock: clock,
	}
}

// Record counts one successful prediction. userID may be nil for anonymous
// callers, in which case only the service totals move.
func (t *Tracker) Record(userID *int64, label sentiment.Label) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.requests++
	bump(label, &t.positive, &t.negative, &t.neutral)

	if userID == nil {
		return
	}
	u, ok := t.users[*userID]
	if !ok {
		u = &UserCounters{StartTime: t.clock.Now()}
		t.users[*userID] = u
	}
	u.Total++
	bump(label, &u.Positive, &u.Negative, &u.Neutral)
}

func bump(label sentiment.Label, positive, negative, neutral *int) {
	switch label {
	case sentiment.Positive:
		*positive++
	case sentiment.Negative:
		*negative++
	default:
		*neutral++
	}
}

func (t *Tracker) RecordError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests++
	t.errors++
}

// User reports zeros with no uptime for unknown ids.
func (t *Tracker) User(id int64) models.UserStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	u, ok := t.users[id]
	if !ok {
		return models.UserStats{}
	}
	return models.UserStats{
		TotalRequests: u.Total,
		Positive:      u.Positive,
		Negative:      u.Negative,
		Neutral:       u.Neutral,
		UptimeSeconds: t.clock.Since(u.StartTime).Seconds(),
	}
}

func (t *Tracker) Service() models.ServiceStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return models.ServiceStats{
		TotalRequests: t.requests,
		Positive:      t.positive,
		Negative:      t.negative,
		Neutral:       t.neutral,
		Errors:        t.errors,
	}
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{Users: make(map[int64]UserCounters, len(t.users))}
	for id, u := range t.users {
		snap.Users[id] = *u
	}
	return snap
}

// Restore replaces the per-user counters with snap.
func (t *Tracker) Restore(snap Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.users = make(map[int64]*UserCounters, len(snap.Users))
	for id, u := range snap.Users {
		u := u
		if u.StartTime.IsZero() {
			u.StartTime = t.clock.Now()
		}
		t.users[id] = &u
	}
}
