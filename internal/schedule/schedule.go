// Package schedule parses task schedule specs and computes next-run times.
//
// Three spec forms are supported:
//
//	"@every 5m"            fixed interval
//	"*/10 * * * *"         5-field cron (minute granularity)
//	"2026-09-01T09:00:00Z" RFC3339 one-shot
//
// All next-run computations return an instant strictly after the reference
// time, so a store recovering from a long outage can never be handed a due
// time in the past.
package schedule

import (
	"fmt"
	"strings"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// cronParser parses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

const everyPrefix = "@every "

// Kind identifies the schedule form.
type Kind int

const (
	KindInterval Kind = iota
	KindCron
	KindOnce
)

// Spec is a parsed schedule.
type Spec struct {
	raw      string
	kind     Kind
	interval time.Duration
	cron     cronlib.Schedule
	at       time.Time
}

// Parse parses a schedule spec string.
func Parse(raw string) (*Spec, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty schedule spec")
	}

	if strings.HasPrefix(trimmed, everyPrefix) {
		d, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(trimmed, everyPrefix)))
		if err != nil {
			return nil, fmt.Errorf("parse interval %q: %w", trimmed, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("interval must be positive, got %s", d)
		}
		return &Spec{raw: trimmed, kind: KindInterval, interval: d}, nil
	}

	if at, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &Spec{raw: trimmed, kind: KindOnce, at: at}, nil
	}

	sched, err := cronParser.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", trimmed, err)
	}
	return &Spec{raw: trimmed, kind: KindCron, cron: sched}, nil
}

// Kind returns the schedule form.
func (s *Spec) Kind() Kind { return s.kind }

// Interval returns the fixed interval for KindInterval specs, zero otherwise.
func (s *Spec) Interval() time.Duration { return s.interval }

func (s *Spec) String() string { return s.raw }

// NextAfter returns the first firing strictly after t. ok is false when the
// schedule has no firing after t (an exhausted one-shot).
func (s *Spec) NextAfter(t time.Time) (next time.Time, ok bool) {
	switch s.kind {
	case KindInterval:
		return t.Add(s.interval), true
	case KindCron:
		// robfig returns the zero time when the expression can never match
		// again (e.g. "0 0 30 2 *"). Treat that as exhausted, not as a
		// firing in year 1.
		next := s.cron.Next(t)
		if next.IsZero() {
			return time.Time{}, false
		}
		return next, true
	case KindOnce:
		if s.at.After(t) {
			return s.at, true
		}
		return time.Time{}, false
	}
	return time.Time{}, false
}

// CatchUpPolicy selects how next-run times are computed for a task claimed
// late, after a scheduler outage.
type CatchUpPolicy string

const (
	// CatchUpSkip drops missed firings: the next run is the first schedule
	// instant strictly after now, stepping from the previously planned run so
	// the original cadence phase is preserved.
	CatchUpSkip CatchUpPolicy = "skip"
	// CatchUpImmediate re-anchors the schedule at now: the next run is
	// next_after(now), discarding the original phase.
	CatchUpImmediate CatchUpPolicy = "immediate"
)

// ParsePolicy validates a policy string, defaulting empty to CatchUpSkip.
func ParsePolicy(raw string) (CatchUpPolicy, error) {
	switch CatchUpPolicy(strings.TrimSpace(strings.ToLower(raw))) {
	case "", CatchUpSkip:
		return CatchUpSkip, nil
	case CatchUpImmediate:
		return CatchUpImmediate, nil
	default:
		return "", fmt.Errorf("unknown catch-up policy %q (want skip or immediate)", raw)
	}
}

// Evaluator computes next-run times under a catch-up policy. The zero value
// uses CatchUpSkip.
type Evaluator struct {
	CatchUp CatchUpPolicy
}

// maxCatchUpSteps bounds the cron stepping loop; beyond it the evaluator
// falls back to re-anchoring at now.
const maxCatchUpSteps = 10000

// NextRun computes the next firing for spec given the previously planned run
// (anchor; may be zero for a new task) and the current time. The result is
// always strictly after now. ok is false when the schedule is exhausted.
func (e Evaluator) NextRun(spec string, anchor, now time.Time) (time.Time, bool, error) {
	s, err := Parse(spec)
	if err != nil {
		return time.Time{}, false, err
	}

	if e.CatchUp == CatchUpImmediate || anchor.IsZero() {
		next, ok := s.NextAfter(now)
		return next, ok, nil
	}

	// CatchUpSkip: step from the anchor until strictly after now.
	if s.kind == KindInterval {
		// Jump arithmetically; a tiny interval over a long outage would
		// otherwise loop for millions of steps.
		elapsed := now.Sub(anchor)
		steps := elapsed/s.interval + 1
		if steps < 1 {
			steps = 1
		}
		next := anchor.Add(time.Duration(steps) * s.interval)
		for !next.After(now) {
			next = next.Add(s.interval)
		}
		return next, true, nil
	}

	next, ok := s.NextAfter(anchor)
	for i := 0; ok && !next.After(now); i++ {
		if i >= maxCatchUpSteps {
			next, ok = s.NextAfter(now)
			break
		}
		next, ok = s.NextAfter(next)
	}
	return next, ok, nil
}

// Validate reports whether raw parses as a schedule spec.
func Validate(raw string) error {
	_, err := Parse(raw)
	return err
}
