package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Persister interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// Python-style isoformat timestamps written by older deployments carry no zone.
var startTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseStartTime(raw string) (time.Time, bool) {
	for _, layout := range startTimeLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339Nano {
			t, err = time.Parse(layout, raw)
		} else {
			t, err = time.ParseInLocation(layout, raw, time.Local)
		}
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func formatStartTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

type fileUser struct {
	Total     int    `json:"total"`
	Positive  int    `json:"positive"`
	Negative  int    `json:"negative"`
	Neutral   int    `json:"neutral"`
	StartTime string `json:"start_time,omitempty"`
}

type fileFormat struct {
	Users map[string]fileUser `json:"users"`
}

// FilePersister stores per-user counters in a JSON file shaped
// {"users": {"<id>": {...}}}.
type FilePersister struct {
	Path string
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{Path: path}
}

// Load returns an empty snapshot when the file does not exist yet.
func (f *FilePersister) Load(context.Context) (Snapshot, error) {
	snap := Snapshot{Users: map[int64]UserCounters{}}

	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("[Stats] No stats file yet", slog.String("path", f.Path))
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("read stats file: %w", err)
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return snap, fmt.Errorf("decode stats file: %w", err)
	}

	for rawID, u := range ff.Users {
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			slog.Warn("[Stats] Skipping user with non-numeric id", slog.String("user_id", rawID))
			continue
		}
		start, _ := parseStartTime(u.StartTime)
		snap.Users[id] = UserCounters{
			Total:     u.Total,
			Positive:  u.Positive,
			Negative:  u.Negative,
			Neutral:   u.Neutral,
			StartTime: start,
		}
	}

	slog.Info("[Stats] Loaded stats file",
		slog.String("path", f.Path),
		slog.Int("users", len(snap.Users)))
	return snap, nil
}

// Save writes to a temp file and renames it over Path.
func (f *FilePersister) Save(_ context.Context, snap Snapshot) error {
	ff := fileFormat{Users: make(map[string]fileUser, len(snap.Users))}
	for id, u := range snap.Users {
		ff.Users[strconv.FormatInt(id, 10)] = fileUser{
			Total:     u.Total,
			Positive:  u.Positive,
			Negative:  u.Negative,
			Neutral:   u.Neutral,
			StartTime: formatStartTime(u.StartTime),
		}
	}

	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".stats-*.json")
	if err != nil {
		return fmt.Errorf("create temp stats file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write stats file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close stats file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("replace stats file: %w", err)
	}

	slog.Info("[Stats] Saved stats file",
		slog.String("path", f.Path),
		slog.Int("users", len(snap.Users)))
	return nil
}
