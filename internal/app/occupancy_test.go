package app_test

import (
	"context"
	"testing"
	"time"

	"hotel_booking/internal/app"
	"hotel_booking/internal/domain"
)

func ptime(s string) *time.Time { t := day(s); return &t }

func TestOccupancy_OneOfThreeRoomsAcrossTwoDays(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.addRoom(t, "102", 2)
	e.addRoom(t, "103", 2)
	e.confirmed(t, "2024-06-01", "2024-06-04")

	rep, err := e.reports.Report(ctx, manager, 1, ptime("2024-06-01"), ptime("2024-06-02"))
	if err != nil {
		t.Fatal(err)
	}
	if rep.TotalRooms != 3 || rep.Period.TotalDays != 2 {
		t.Fatalf("rooms=%d days=%d", rep.TotalRooms, rep.Period.TotalDays)
	}
	if rep.Summary.TotalNightsBooked != 2 || rep.Summary.AverageOccupancyRate != 33.33 {
		t.Fatalf("summary = %+v", rep.Summary)
	}
	for _, d := range rep.Daily {
		if d.BookedRooms != 1 || d.AvailableRooms != 2 || d.OccupancyRate != 33.33 {
			t.Fatalf("day = %+v", d)
		}
	}
}

func TestBuildOccupancy_NoRooms(t *testing.T) {
	rep := app.BuildOccupancy(7, 0, nil, stay("2024-06-01", "2024-06-03"))
	if !rep.Summary.NoData || rep.Summary.AverageOccupancyRate != 0 {
		t.Fatalf("summary = %+v", rep.Summary)
	}
	if len(rep.Daily) != 3 || rep.Daily[0].OccupancyRate != 0 || rep.Daily[0].AvailableRooms != 0 {
		t.Fatalf("daily = %+v", rep.Daily)
	}
}

func TestBuildOccupancy_ClipsAndCountsRoomOncePerDay(t *testing.T) {
	bookings := []domain.Booking{
		// starts before the window
		{ID: 1, RoomID: 1, Stay: stay("2024-05-25", "2024-06-02"), Status: domain.StatusCheckedOut},
		// same-day turnover on room 1
		{ID: 2, RoomID: 1, Stay: stay("2024-06-02", "2024-06-10"), Status: domain.StatusConfirmed},
		{ID: 3, RoomID: 2, Stay: stay("2024-06-03", "2024-06-03"), Status: domain.StatusPending},
		{ID: 4, RoomID: 2, Stay: stay("2024-06-01", "2024-06-03"), Status: domain.StatusCancelled},
	}
	rep := app.BuildOccupancy(1, 2, bookings, stay("2024-06-01", "2024-06-03"))

	want := []int{1, 1, 2}
	for i, d := range rep.Daily {
		if d.BookedRooms != want[i] {
			t.Fatalf("%s booked=%d want %d", d.Date, d.BookedRooms, want[i])
		}
	}
	if rep.Summary.TotalNightsBooked != 4 {
		t.Fatalf("nights = %d", rep.Summary.TotalNightsBooked)
	}
	if rep.Daily[2].OccupancyRate != 100 || rep.Summary.AverageOccupancyRate != 66.67 {
		t.Fatalf("rates: day=%v avg=%v", rep.Daily[2].OccupancyRate, rep.Summary.AverageOccupancyRate)
	}
}

func TestOccupancy_DefaultWindowAndAuth(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.reports.Report(ctx, desk, 1, nil, nil)
	wantErr(t, err, domain.ErrForbidden)

	_, err = e.reports.Report(ctx, manager, 0, nil, nil)
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("missing property: %v", err)
	}

	_, err = e.reports.Report(ctx, manager, 1, ptime("2024-06-05"), ptime("2024-06-01"))
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("reversed window: %v", err)
	}

	_, err = e.reports.Report(ctx, manager, 1, ptime("2024-06-01"), ptime("2025-06-03"))
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("window over 366 days: %v", err)
	}
	if _, err := e.reports.Report(ctx, manager, 1, ptime("2024-06-01"), ptime("2025-06-02")); err != nil {
		t.Fatalf("366-day window: %v", err)
	}

	rep, err := e.reports.Report(ctx, manager, 1, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Period.StartDate != "2024-05-01" || rep.Period.EndDate != "2024-05-31" || rep.Period.TotalDays != 31 {
		t.Fatalf("period = %+v", rep.Period)
	}
}

func TestOccupancy_CachedUntilBookingWrite(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	from, to := ptime("2024-06-01"), ptime("2024-06-02")

	first, _ := e.reports.Report(ctx, manager, 1, from, to)
	if first.Summary.TotalNightsBooked != 0 {
		t.Fatalf("unexpected %+v", first.Summary)
	}

	// a write behind the cache's back is not seen
	err := e.store.WithRoomLock(ctx, e.room.ID, func(tx domain.RoomTx) error {
		b := domain.Booking{Reference: "BKX", RoomID: e.room.ID, Stay: stay("2024-06-01", "2024-06-02"), Status: domain.StatusConfirmed}
		return tx.InsertBooking(ctx, &b)
	})
	if err != nil {
		t.Fatal(err)
	}
	cached, _ := e.reports.Report(ctx, manager, 1, from, to)
	if cached.Summary.TotalNightsBooked != 0 {
		t.Fatal("expected the cached report")
	}

	// a booking through the service bumps the generation
	if _, err := e.bookings.Create(ctx, guest, req(e.room.ID, "2024-06-20", "2024-06-21", 1)); err != nil {
		t.Fatal(err)
	}
	fresh, _ := e.reports.Report(ctx, manager, 1, from, to)
	if fresh.Summary.TotalNightsBooked != 2 {
		t.Fatalf("expected a recomputed report, got %+v", fresh.Summary)
	}
}

func TestOccupancy_UnreadableSnapshotIsRecomputed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	from, to := ptime("2024-06-01"), ptime("2024-06-02")

	if _, err := e.reports.Report(ctx, manager, 1, from, to); err != nil {
		t.Fatal(err)
	}
	e.cache.corrupt()

	err := e.store.WithRoomLock(ctx, e.room.ID, func(tx domain.RoomTx) error {
		b := domain.Booking{Reference: "BKY", RoomID: e.room.ID, Stay: stay("2024-06-01", "2024-06-02"), Status: domain.StatusConfirmed}
		return tx.InsertBooking(ctx, &b)
	})
	if err != nil {
		t.Fatal(err)
	}

	rep, err := e.reports.Report(ctx, manager, 1, from, to)
	if err != nil {
		t.Fatal(err)
	}
	if rep.PropertyID != 1 || rep.Summary.TotalNightsBooked != 2 {
		t.Fatalf("expected a recomputed report, got %+v", rep)
	}
	if e.cache.dels != 1 {
		t.Fatalf("unreadable snapshot should be dropped once, dels=%d", e.cache.dels)
	}
}
