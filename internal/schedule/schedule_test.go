package schedule

import (
	"testing"
	"time"
)

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return ts
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Kind
		wantErr bool
	}{
		{name: "interval", raw: "@every 5m", want: KindInterval},
		{name: "interval with spaces", raw: "  @every 30s ", want: KindInterval},
		{name: "cron", raw: "*/10 * * * *", want: KindCron},
		{name: "cron daily", raw: "0 9 * * 1-5", want: KindCron},
		{name: "one-shot", raw: "2026-09-01T09:00:00Z", want: KindOnce},
		{name: "empty", raw: "", wantErr: true},
		{name: "negative interval", raw: "@every -5m", wantErr: true},
		{name: "zero interval", raw: "@every 0s", wantErr: true},
		{name: "gibberish", raw: "whenever", wantErr: true},
		{name: "six field cron rejected", raw: "0 0 9 * * 1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := Parse(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) succeeded, want error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.raw, err)
			}
			if spec.Kind() != tt.want {
				t.Errorf("Kind = %v, want %v", spec.Kind(), tt.want)
			}
		})
	}
}

func TestNextAfterInterval(t *testing.T) {
	spec, err := Parse("@every 5m")
	if err != nil {
		t.Fatal(err)
	}
	base := mustParseTime(t, "2026-08-27T10:00:00Z")
	next, ok := spec.NextAfter(base)
	if !ok {
		t.Fatal("interval schedule reported exhausted")
	}
	if want := base.Add(5 * time.Minute); !next.Equal(want) {
		t.Errorf("NextAfter = %v, want %v", next, want)
	}
}

func TestNextAfterCron(t *testing.T) {
	spec, err := Parse("0 9 * * *")
	if err != nil {
		t.Fatal(err)
	}
	base := mustParseTime(t, "2026-08-27T10:00:00Z")
	next, ok := spec.NextAfter(base)
	if !ok {
		t.Fatal("cron schedule reported exhausted")
	}
	if want := mustParseTime(t, "2026-08-28T09:00:00Z"); !next.Equal(want) {
		t.Errorf("NextAfter = %v, want %v", next, want)
	}
}

func TestNextAfterImpossibleCron(t *testing.T) {
	// Parseable but never matches: February 30th.
	spec, err := Parse("0 0 30 2 *")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	base := mustParseTime(t, "2026-08-27T10:00:00Z")
	next, ok := spec.NextAfter(base)
	if ok {
		t.Errorf("impossible cron reported a next run %v", next)
	}
	if !next.IsZero() {
		t.Errorf("exhausted result = %v, want zero time", next)
	}
}

func TestNextAfterOnce(t *testing.T) {
	spec, err := Parse("2026-09-01T09:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	before := mustParseTime(t, "2026-08-27T10:00:00Z")
	next, ok := spec.NextAfter(before)
	if !ok || !next.Equal(mustParseTime(t, "2026-09-01T09:00:00Z")) {
		t.Errorf("NextAfter before firing = %v/%v", next, ok)
	}
	after := mustParseTime(t, "2026-09-02T09:00:00Z")
	if _, ok := spec.NextAfter(after); ok {
		t.Error("one-shot past its firing still reports a next run")
	}
}

func TestEvaluatorOnTimeClaim(t *testing.T) {
	// Interval 5m, last planned run T+5m, claimed exactly then: next is T+10m.
	anchor := mustParseTime(t, "2026-08-27T10:05:00Z")
	now := anchor
	eval := Evaluator{CatchUp: CatchUpSkip}
	next, ok, err := eval.NextRun("@every 5m", anchor, now)
	if err != nil || !ok {
		t.Fatalf("NextRun: ok=%v err=%v", ok, err)
	}
	if want := mustParseTime(t, "2026-08-27T10:10:00Z"); !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestEvaluatorCatchUpSkipPreservesPhase(t *testing.T) {
	// Planned run at T, claimed 42 minutes late: next stays on the 5m grid
	// anchored at T, and is strictly after now.
	anchor := mustParseTime(t, "2026-08-27T10:05:00Z")
	now := anchor.Add(42 * time.Minute) // 10:47
	next, ok, err := Evaluator{CatchUp: CatchUpSkip}.NextRun("@every 5m", anchor, now)
	if err != nil || !ok {
		t.Fatalf("NextRun: ok=%v err=%v", ok, err)
	}
	if !next.After(now) {
		t.Fatalf("next = %v, not strictly after now %v", next, now)
	}
	if want := mustParseTime(t, "2026-08-27T10:50:00Z"); !next.Equal(want) {
		t.Errorf("next = %v, want %v (phase preserved)", next, want)
	}
}

func TestEvaluatorCatchUpImmediateReanchors(t *testing.T) {
	anchor := mustParseTime(t, "2026-08-27T10:05:00Z")
	now := anchor.Add(42 * time.Minute)
	next, ok, err := Evaluator{CatchUp: CatchUpImmediate}.NextRun("@every 5m", anchor, now)
	if err != nil || !ok {
		t.Fatalf("NextRun: ok=%v err=%v", ok, err)
	}
	if want := now.Add(5 * time.Minute); !next.Equal(want) {
		t.Errorf("next = %v, want %v (re-anchored at now)", next, want)
	}
}

func TestEvaluatorNeverReturnsPast(t *testing.T) {
	anchor := mustParseTime(t, "2020-01-01T00:00:00Z")
	now := mustParseTime(t, "2026-08-27T10:47:13Z")
	for _, spec := range []string{"@every 1s", "@every 5m", "*/5 * * * *", "0 9 * * *"} {
		for _, policy := range []CatchUpPolicy{CatchUpSkip, CatchUpImmediate} {
			next, ok, err := Evaluator{CatchUp: policy}.NextRun(spec, anchor, now)
			if err != nil || !ok {
				t.Fatalf("%s/%s: ok=%v err=%v", spec, policy, ok, err)
			}
			if !next.After(now) {
				t.Errorf("%s/%s: next = %v, not strictly after %v", spec, policy, next, now)
			}
		}
	}
}

func TestEvaluatorZeroAnchorUsesNow(t *testing.T) {
	now := mustParseTime(t, "2026-08-27T10:00:00Z")
	next, ok, err := Evaluator{}.NextRun("@every 1h", time.Time{}, now)
	if err != nil || !ok {
		t.Fatalf("NextRun: ok=%v err=%v", ok, err)
	}
	if want := now.Add(time.Hour); !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestEvaluatorExhaustedOneShot(t *testing.T) {
	now := mustParseTime(t, "2026-08-27T10:00:00Z")
	_, ok, err := Evaluator{}.NextRun("2026-08-01T09:00:00Z", time.Time{}, now)
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	if ok {
		t.Error("exhausted one-shot reported a next run")
	}
}

func TestEvaluatorImpossibleCron(t *testing.T) {
	now := mustParseTime(t, "2026-08-27T10:00:00Z")
	for _, policy := range []CatchUpPolicy{CatchUpSkip, CatchUpImmediate} {
		next, ok, err := Evaluator{CatchUp: policy}.NextRun("0 0 30 2 *", time.Time{}, now)
		if err != nil {
			t.Fatalf("%s: NextRun: %v", policy, err)
		}
		if ok {
			t.Errorf("%s: impossible cron reported a next run %v", policy, next)
		}
	}
	// Same with an anchored claim: stepping from a stored next_run must not
	// loop or report a past instant.
	anchor := mustParseTime(t, "2026-08-27T09:00:00Z")
	if next, ok, err := (Evaluator{CatchUp: CatchUpSkip}).NextRun("0 0 30 2 *", anchor, now); err != nil || ok {
		t.Errorf("anchored impossible cron: next=%v ok=%v err=%v", next, ok, err)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(""); err != nil || p != CatchUpSkip {
		t.Errorf("ParsePolicy(\"\") = %v, %v", p, err)
	}
	if p, err := ParsePolicy("Immediate"); err != nil || p != CatchUpImmediate {
		t.Errorf("ParsePolicy(Immediate) = %v, %v", p, err)
	}
	if _, err := ParsePolicy("bogus"); err == nil {
		t.Error("ParsePolicy(bogus) succeeded")
	}
}
