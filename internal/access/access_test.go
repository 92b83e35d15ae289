package access

import (
	"testing"
	"time"
)

func ptr(t time.Time) *time.Time { return &t }

func TestResolve(t *testing.T) {
	now := time.Date(2026, 12, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name  string
		trial *time.Time
		paid  *time.Time
		want  Status
	}{
		{"nothing set", nil, nil, StatusExpired},
		{"trial running", ptr(future), nil, StatusTrial},
		{"trial over", ptr(past), nil, StatusExpired},
		{"paid running", nil, ptr(future), StatusActive},
		{"paid beats trial", ptr(future), ptr(future.Add(time.Hour)), StatusActive},
		{"paid over, trial running", ptr(future), ptr(past), StatusTrial},
		{"both over", ptr(past), ptr(past), StatusExpired},
		{"trial ends exactly now", ptr(now), nil, StatusExpired},
		{"paid ends exactly now", nil, ptr(now), StatusExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.trial, tt.paid, now); got != tt.want {
				t.Errorf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveTotality(t *testing.T) {
	now := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	offsets := []time.Duration{-48 * time.Hour, -time.Millisecond, 0, time.Millisecond, 48 * time.Hour}

	candidates := []*time.Time{nil}
	for _, o := range offsets {
		candidates = append(candidates, ptr(now.Add(o)))
	}

	for _, trial := range candidates {
		for _, paid := range candidates {
			got := Resolve(trial, paid, now)
			paidLive := paid != nil && paid.After(now)
			trialLive := trial != nil && trial.After(now)
			switch {
			case paidLive && got != StatusActive:
				t.Errorf("paid live: got %q, want active", got)
			case !paidLive && trialLive && got != StatusTrial:
				t.Errorf("trial live: got %q, want trial", got)
			case !paidLive && !trialLive && got != StatusExpired:
				t.Errorf("nothing live: got %q, want expired", got)
			}
		}
	}
}

func TestRemainingDays(t *testing.T) {
	now := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ts   *time.Time
		want int
	}{
		{"nil", nil, 0},
		{"ten hours", ptr(now.Add(10 * time.Hour)), 1},
		{"three days and a millisecond", ptr(now.Add(72*time.Hour + time.Millisecond)), 4},
		{"exactly one day", ptr(now.Add(24 * time.Hour)), 1},
		{"one second ago", ptr(now.Add(-time.Second)), 0},
		{"now", ptr(now), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RemainingDays(tt.ts, now); got != tt.want {
				t.Errorf("RemainingDays = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAddDaysKeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Tallinn")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	start := time.Date(2026, 3, 20, 9, 0, 0, 0, loc)
	got := AddDays(start, 14)
	if got.Hour() != 9 || got.Day() != 3 || got.Month() != time.April {
		t.Errorf("AddDays = %v, want 2026-04-03 09:00 local", got)
	}
}

func TestTrialEndFallback(t *testing.T) {
	created := time.Date(2026, 11, 1, 8, 0, 0, 0, time.UTC)

	got := TrialEnd(nil, created, DefaultTrialDays)
	if got == nil {
		t.Fatal("expected fallback trial end")
	}
	want := time.Date(2026, 11, 15, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("TrialEnd = %v, want %v", got, want)
	}

	stored := time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC)
	if got := TrialEnd(&stored, created, DefaultTrialDays); !got.Equal(stored) {
		t.Errorf("TrialEnd = %v, want stored %v", got, stored)
	}

	if got := TrialEnd(nil, time.Time{}, DefaultTrialDays); got != nil {
		t.Errorf("TrialEnd with unknown creation = %v, want nil", got)
	}
}
