package service

import (
	"errors"
	"math"
	"testing"

	"github.com/trashinator/internal/db"
	"github.com/trashinator/internal/metrics"
	"github.com/trashinator/internal/tracking"
)

func TestCloseStaleTransitions(t *testing.T) {
	gdb := setupServiceTestDB(t)
	daily := newDailyTrash(gdb)

	complete := createHousehold(t, gdb, createUser(t, gdb, "complete").ID, 2)
	daily.submit(t, complete.ID, day(-10), 14)
	completeRecord := daily.submit(t, complete.ID, day(-9), 14)

	void := createHousehold(t, gdb, createUser(t, gdb, "void").ID, 2)
	voidRecord := daily.submit(t, void.ID, day(-10), 3)

	active := createHousehold(t, gdb, createUser(t, gdb, "active").ID, 2)
	daily.submit(t, active.ID, day(-1), 3)
	activeRecord := daily.submit(t, active.ID, day(0), 3)

	boundary := createHousehold(t, gdb, createUser(t, gdb, "boundary").ID, 2)
	boundaryRecord := daily.submit(t, boundary.ID, day(-tracking.DefaultMaxTrackingSplit), 3)

	empty := db.TrackingPeriod{Status: string(tracking.StatusProgress)}
	if err := gdb.Create(&empty).Error; err != nil {
		t.Fatalf("failed to create empty period: %v", err)
	}

	m := metrics.New()
	svc := NewPeriodService(gdb, tracking.DefaultMaxTrackingSplit).WithClock(clockAt(today)).WithMetrics(m)

	result, err := svc.CloseStale()
	if err != nil {
		t.Fatalf("close stale failed: %v", err)
	}
	if result.Completed != 1 || result.Voided != 2 {
		t.Fatalf("expected 1 completed and 2 voided, got %+v", result)
	}

	cases := map[uint]tracking.Status{
		completeRecord.TrackingPeriodID: tracking.StatusComplete,
		voidRecord.TrackingPeriodID:     tracking.StatusVoid,
		activeRecord.TrackingPeriodID:   tracking.StatusProgress,
		boundaryRecord.TrackingPeriodID: tracking.StatusProgress,
		empty.ID:                        tracking.StatusVoid,
	}
	for id, want := range cases {
		if got := periodStatus(t, gdb, id); got != want {
			t.Fatalf("period %d: expected %s, got %s", id, want, got)
		}
	}

	again, err := svc.CloseStale()
	if err != nil {
		t.Fatalf("second close stale failed: %v", err)
	}
	if again.Completed != 0 || again.Voided != 0 {
		t.Fatalf("expected idempotent sweep, got %+v", again)
	}
}

func TestCloseStaleLeavesTerminalPeriodsAlone(t *testing.T) {
	gdb := setupServiceTestDB(t)
	daily := newDailyTrash(gdb)
	household := createHousehold(t, gdb, createUser(t, gdb, "terminal").ID, 1)

	record := daily.submit(t, household.ID, day(-30), 5)
	if err := gdb.Model(&db.TrackingPeriod{}).Where("id = ?", record.TrackingPeriodID).
		Update("status", string(tracking.StatusComplete)).Error; err != nil {
		t.Fatalf("failed to complete period: %v", err)
	}

	result, err := NewPeriodService(gdb, 3).WithClock(clockAt(today)).CloseStale()
	if err != nil {
		t.Fatalf("close stale failed: %v", err)
	}
	if result.Completed != 0 || result.Voided != 0 {
		t.Fatalf("expected no transitions, got %+v", result)
	}
	if status := periodStatus(t, gdb, record.TrackingPeriodID); status != tracking.StatusComplete {
		t.Fatalf("expected COMPLETE to be kept, got %s", status)
	}
}

func TestPeriodDerivedValues(t *testing.T) {
	gdb := setupServiceTestDB(t)
	daily := newDailyTrash(gdb)
	household := createHousehold(t, gdb, createUser(t, gdb, "derived").ID, 2)

	daily.submit(t, household.ID, day(-10), 14)
	record := daily.submit(t, household.ID, day(-9), 14)

	svc := NewPeriodService(gdb, 3).WithClock(clockAt(today))

	began, latest, ok, err := svc.DateSpan(record.TrackingPeriodID)
	if err != nil || !ok {
		t.Fatalf("date span failed: ok=%v err=%v", ok, err)
	}
	if !began.Equal(day(-10)) || !latest.Equal(day(-9)) {
		t.Fatalf("unexpected span %s..%s", began.Format(dateLayout), latest.Format(dateLayout))
	}

	value, ok, err := svc.VolumePerPersonPerWeek(record.TrackingPeriodID)
	if err != nil || !ok {
		t.Fatalf("volume failed: ok=%v err=%v", ok, err)
	}
	if math.Abs(value-14) > 1e-9 {
		t.Fatalf("expected 14 litres per person per week, got %v", value)
	}

	view, err := svc.Get(record.TrackingPeriodID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if view.RecordCount != 2 || view.VolumePerPersonPerWeek == nil || view.Began == nil {
		t.Fatalf("unexpected view %+v", view)
	}

	if _, _, ok, err := svc.DateSpan(9999); ok || err != nil {
		t.Fatalf("expected absent span for missing period, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := svc.VolumePerPersonPerWeek(9999); ok || err != nil {
		t.Fatalf("expected absent volume for missing period, got ok=%v err=%v", ok, err)
	}
	if _, err := svc.Get(9999); !errors.Is(err, ErrPeriodNotFound) {
		t.Fatalf("expected ErrPeriodNotFound, got %v", err)
	}
}

func TestPeriodDerivedValuesAbsentForVoidAndEmpty(t *testing.T) {
	gdb := setupServiceTestDB(t)
	daily := newDailyTrash(gdb)
	household := createHousehold(t, gdb, createUser(t, gdb, "absent").ID, 2)

	record := daily.submit(t, household.ID, day(-10), 9)
	empty := db.TrackingPeriod{Status: string(tracking.StatusProgress)}
	if err := gdb.Create(&empty).Error; err != nil {
		t.Fatalf("failed to create empty period: %v", err)
	}

	svc := NewPeriodService(gdb, 3).WithClock(clockAt(today))
	if _, err := svc.CloseStale(); err != nil {
		t.Fatalf("close stale failed: %v", err)
	}

	if _, ok, err := svc.VolumePerPersonPerWeek(record.TrackingPeriodID); ok || err != nil {
		t.Fatalf("expected absent volume for VOID period, got ok=%v err=%v", ok, err)
	}

	// VOID 周期仍有起止日期
	if _, _, ok, err := svc.DateSpan(record.TrackingPeriodID); !ok || err != nil {
		t.Fatalf("expected span for VOID period, got ok=%v err=%v", ok, err)
	}

	if _, _, ok, err := svc.DateSpan(empty.ID); ok || err != nil {
		t.Fatalf("expected absent span for empty period, got ok=%v err=%v", ok, err)
	}
}

func TestPeriodListForUser(t *testing.T) {
	gdb := setupServiceTestDB(t)
	daily := newDailyTrash(gdb)
	user := createUser(t, gdb, "lister")
	household := createHousehold(t, gdb, user.ID, 1)
	other := createHousehold(t, gdb, createUser(t, gdb, "other").ID, 1)

	daily.submit(t, household.ID, day(-40), 2)
	daily.submit(t, household.ID, day(-1), 2)
	daily.submit(t, other.ID, day(-1), 2)

	views, err := NewPeriodService(gdb, 3).ListForUser(user.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(views))
	}
	if views[0].ID >= views[1].ID {
		t.Fatal("expected periods ordered by id")
	}
}
