package refresh

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mbertho/scrapview/internal/utils"
)

// Scheduler triggers one refresh per scope family at a fixed daily wall-clock
// time, and on demand. Each family runs at most one refresh at a time;
// triggers arriving while one is in flight coalesce onto its result instead
// of queuing.
type Scheduler struct {
	families map[string]*family
	order    []string
}

// Status is the externally visible state of one family.
type Status struct {
	Family              string    `json:"family"`
	State               string    `json:"state"` // "idle" or "refreshing"
	ScheduledAt         string    `json:"scheduledAt,omitempty"`
	LastStarted         time.Time `json:"lastStarted,omitempty"`
	LastDurationSeconds float64   `json:"lastDurationSeconds,omitempty"`
	LastSuccess         time.Time `json:"lastSuccess,omitempty"`
	LastError           string    `json:"lastError,omitempty"`
}

type family struct {
	name string
	at   string // "HH:MM", empty disables the daily trigger
	run  func(context.Context) Outcome

	runMu sync.Mutex // held for the duration of a refresh
	last  Outcome

	statusMu sync.RWMutex
	status   Status
}

// NewScheduler builds the two standard families. globalAt/unitsAt are daily
// "HH:MM" times in the process's local timezone; empty disables scheduling
// for that family (on-demand still works).
func NewScheduler(r *Runner, globalAt, unitsAt string) *Scheduler {
	s := &Scheduler{families: make(map[string]*family)}
	s.add("global", globalAt, r.RefreshGlobal)
	s.add("units", unitsAt, r.RefreshUnits)
	return s
}

func (s *Scheduler) add(name, at string, run func(context.Context) Outcome) {
	s.families[name] = &family{
		name:   name,
		at:     at,
		run:    run,
		status: Status{Family: name, State: "idle", ScheduledAt: at},
	}
	s.order = append(s.order, name)
}

// Start launches the daily loops. They stop when ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	for _, name := range s.order {
		f := s.families[name]
		if f.at == "" {
			continue
		}
		if _, _, err := splitWallClock(f.at); err != nil {
			utils.Log.Errorf("Not scheduling %s refreshes: %v", f.name, err)
			continue
		}
		go s.loop(ctx, f)
	}
}

func (s *Scheduler) loop(ctx context.Context, f *family) {
	for {
		next := nextRun(time.Now(), f.at)
		utils.Log.Infof("Next %s refresh scheduled for %s", f.name, next.Format(time.RFC3339))
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			f.trigger(ctx)
		}
	}
}

// Trigger runs the family's refresh now, or joins the one in flight.
func (s *Scheduler) Trigger(ctx context.Context, familyName string) (Outcome, error) {
	f, ok := s.families[familyName]
	if !ok {
		return Outcome{}, fmt.Errorf("unknown scope family %q", familyName)
	}
	return f.trigger(ctx), nil
}

// TriggerAll refreshes every family sequentially and merges the outcomes.
func (s *Scheduler) TriggerAll(ctx context.Context) Outcome {
	start := time.Now()
	merged := Outcome{Family: "all", Success: true, RecordCounts: make(map[string]int)}
	for _, name := range s.order {
		out := s.families[name].trigger(ctx)
		if !out.Success {
			merged.Success = false
			if merged.Error != "" {
				merged.Error += "; "
			}
			merged.Error += out.Error
		}
		for k, v := range out.RecordCounts {
			merged.RecordCounts[k] = v
		}
	}
	merged.DurationSeconds = time.Since(start).Seconds()
	return merged
}

// Statuses reports every family, in registration order.
func (s *Scheduler) Statuses() []Status {
	out := make([]Status, 0, len(s.order))
	for _, name := range s.order {
		f := s.families[name]
		f.statusMu.RLock()
		out = append(out, f.status)
		f.statusMu.RUnlock()
	}
	return out
}

func (f *family) trigger(ctx context.Context) Outcome {
	if !f.runMu.TryLock() {
		// A refresh is in flight. Wait for it and reuse its outcome rather
		// than running a duplicate over the same source.
		utils.Log.Debugf("Coalescing %s refresh trigger onto the running cycle", f.name)
		f.runMu.Lock()
		defer f.runMu.Unlock()
		return f.last
	}
	defer f.runMu.Unlock()

	started := time.Now()
	f.setRefreshing(started)
	out := f.run(ctx)
	f.last = out
	f.setIdle(started, out)
	return out
}

func (f *family) setRefreshing(started time.Time) {
	f.statusMu.Lock()
	f.status.State = "refreshing"
	f.status.LastStarted = started
	f.statusMu.Unlock()
}

func (f *family) setIdle(started time.Time, out Outcome) {
	f.statusMu.Lock()
	f.status.State = "idle"
	f.status.LastDurationSeconds = out.DurationSeconds
	if out.Success {
		f.status.LastSuccess = started
		f.status.LastError = ""
	} else {
		f.status.LastError = out.Error
	}
	f.statusMu.Unlock()
}

// nextRun returns the next occurrence of the daily "HH:MM" time after now.
func nextRun(now time.Time, hhmm string) time.Time {
	hour, minute, err := splitWallClock(hhmm)
	if err != nil {
		// Start guards against this; fall back to a day from now.
		return now.Add(24 * time.Hour)
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

func splitWallClock(hhmm string) (hour, minute int, err error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("bad schedule time %q, want HH:MM", hhmm)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("bad schedule time %q, want HH:MM", hhmm)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("bad schedule time %q, want HH:MM", hhmm)
	}
	return hour, minute, nil
}
