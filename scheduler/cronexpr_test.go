package scheduler

import (
	"testing"
	"time"
)

func TestCronExpr_Next_AllAny(t *testing.T) {
	e, err := parseCronExpr("* * * * *", nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	after := time.Date(2026, 2, 3, 9, 0, 30, 0, time.UTC)
	next, err := e.next(after)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if want := time.Date(2026, 2, 3, 9, 1, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("want %s, got %s", want.Format(time.RFC3339), next.Format(time.RFC3339))
	}
}

func TestCronExpr_Next_FirstOfMonthInTokyo(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	e, err := parseCronExpr("0 9 1 * *", tokyo)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	after := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)
	next, err := e.next(after)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("want %s, got %s", want.Format(time.RFC3339), next.Format(time.RFC3339))
	}
}

func TestCronExpr_RangesStepsAndDescriptors(t *testing.T) {
	e, err := parseCronExpr("30 18 * * 1-5/2", nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// 2026-02-03 is a Tuesday; next Mon/Wed/Fri slot is Wednesday.
	next, err := e.next(time.Date(2026, 2, 3, 19, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if want := time.Date(2026, 2, 4, 18, 30, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("want %s, got %s", want.Format(time.RFC3339), next.Format(time.RFC3339))
	}

	sunday, err := parseCronExpr("0 0 * * 7", nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !sunday.dow.has(0) {
		t.Fatalf("dow 7 should map to Sunday")
	}

	monthly, err := parseCronExpr("@monthly", nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	next, err = monthly.next(time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if want := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("want %s, got %s", want.Format(time.RFC3339), next.Format(time.RFC3339))
	}
}

func TestCronExpr_DomOrDow(t *testing.T) {
	e, err := parseCronExpr("0 0 13 * 5", nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// 2026-02-06 is a Friday and comes before the 13th.
	next, err := e.next(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if want := time.Date(2026, 2, 6, 0, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("want %s, got %s", want.Format(time.RFC3339), next.Format(time.RFC3339))
	}
}

func TestCronExpr_Invalid(t *testing.T) {
	for _, expr := range []string{"0 0 * *", "60 * * * *", "* * 0 * *", "*/0 * * * *", "5-1 * * * *", "@sometimes"} {
		if _, err := parseCronExpr(expr, nil); err == nil {
			t.Fatalf("expected error for %q", expr)
		}
	}
}

func TestCronExpr_ImpossibleDate(t *testing.T) {
	e, err := parseCronExpr("0 0 31 2 *", nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := e.next(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)); err == nil {
		t.Fatalf("expected no match for Feb 31")
	}
}
