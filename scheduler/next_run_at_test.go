package scheduler

import (
	"testing"
	"time"
)

func TestTargetMonth(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	cases := []struct {
		at     time.Time
		offset int
		want   int
	}{
		{time.Date(2024, 6, 1, 0, 0, 0, 0, tokyo), -1, 5},
		{time.Date(2024, 1, 31, 0, 0, 0, 0, tokyo), -1, 12},
		{time.Date(2024, 12, 15, 0, 0, 0, 0, tokyo), 1, 1},
		{time.Date(2024, 3, 31, 0, 0, 0, 0, tokyo), 0, 3},
		// 2024-04-30T20:00Z is already May 1st in Tokyo.
		{time.Date(2024, 4, 30, 20, 0, 0, 0, time.UTC), 0, 5},
	}
	for _, tc := range cases {
		if got := TargetMonth(tc.at, tc.offset, tokyo); got != tc.want {
			t.Fatalf("TargetMonth(%s, %d) = %d, want %d", tc.at.Format(time.RFC3339), tc.offset, got, tc.want)
		}
	}
}

func TestNextRunAt(t *testing.T) {
	after := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	next, err := NextRunAt("@daily", after, time.UTC)
	if err != nil {
		t.Fatalf("NextRunAt: %v", err)
	}
	if want := time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("want %s, got %s", want.Format(time.RFC3339), next.Format(time.RFC3339))
	}
	if _, err := NextRunAt("bad", after, time.UTC); err == nil {
		t.Fatalf("expected error")
	}
}
