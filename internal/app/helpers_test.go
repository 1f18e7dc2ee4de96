package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"hotel_booking/internal/app"
	"hotel_booking/internal/domain"
	"hotel_booking/internal/storage/memory"
)

// ---- fakes ----

type recordingNotifier struct {
	mu    sync.Mutex
	got   []domain.BookingNotice
	err   error
	delay time.Duration
}

func (n *recordingNotifier) NotifyBooking(ctx context.Context, b domain.BookingNotice) error {
	if n.delay > 0 {
		select {
		case <-time.After(n.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, b)
	return n.err
}

func (n *recordingNotifier) notices() []domain.BookingNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.BookingNotice(nil), n.got...)
}

type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	gets  int
	dels  int
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(v, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dels++
	delete(c.store, key)
	return nil
}

// corrupt overwrites every cached report, leaving generation counters intact.
func (c *fakeCache) corrupt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.store {
		if !strings.HasPrefix(k, "occupancy:gen:") {
			c.store[k] = []byte("{not json")
		}
	}
}

func (c *fakeCache) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	n, _ := strconv.ParseInt(string(c.store[key]), 10, 64)
	n++
	c.store[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

// ---- fixture ----

var (
	guest   = domain.Principal{ID: 1000, Role: domain.RoleCustomer}
	other   = domain.Principal{ID: 1001, Role: domain.RoleCustomer}
	desk    = domain.Principal{ID: 2000, Role: domain.RoleFrontDesk}
	manager = domain.Principal{ID: 3000, Role: domain.RoleManager}
)

type env struct {
	store    *memory.Store
	notifier *recordingNotifier
	disp     *app.Dispatcher
	cache    *fakeCache
	reports  *app.OccupancyService
	bookings *app.BookingService
	avail    *app.AvailabilityService
	rooms    *app.RoomService
	room     domain.Room
}

// today is fixed well before the dates used in scenarios.
var today = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	e := &env{store: memory.New(), notifier: &recordingNotifier{}, cache: &fakeCache{}}
	log := zerolog.Nop()
	now := func() time.Time { return today }

	for _, u := range []domain.User{
		{ID: guest.ID, Name: "Ana Guest", Email: "ana@example.com", Role: domain.RoleCustomer, Active: true},
		{ID: other.ID, Name: "Bob Guest", Email: "bob@example.com", Role: domain.RoleCustomer, Active: true},
		{ID: desk.ID, Name: "Desk", Email: "desk@hotel.test", Role: domain.RoleFrontDesk, Active: true},
		{ID: manager.ID, Name: "Boss", Email: "boss@hotel.test", Role: domain.RoleManager, Active: true},
	} {
		u := u
		if err := e.store.CreateUser(ctx, &u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	e.disp = app.NewDispatcher(e.notifier, 4, time.Second, log)
	e.reports = app.NewOccupancyService(e.store, e.cache, time.Minute, log, now)
	e.bookings = app.NewBookingService(e.store, e.disp, e.reports, log, app.BookingConfig{BcryptCost: bcrypt.MinCost, Now: now})
	e.avail = app.NewAvailabilityService(e.store)
	e.rooms = app.NewRoomService(e.store, e.reports, log)

	e.room = e.addRoom(t, "101", 2)
	return e
}

func (e *env) addRoom(t *testing.T, number string, capacity int) domain.Room {
	t.Helper()
	r, err := e.rooms.Create(context.Background(), manager, domain.Room{
		PropertyID: 1, Number: number, Type: domain.RoomStandard, Price: domain.MoneyFromFloat(100), Capacity: capacity,
	})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return r
}

func day(s string) time.Time {
	t, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func stay(in, out string) domain.DateRange { return domain.DateRange{CheckIn: day(in), CheckOut: day(out)} }

func req(roomID int64, in, out string, guests int) app.CreateBookingInput {
	return app.CreateBookingInput{RoomID: roomID, CheckIn: day(in), CheckOut: day(out), GuestCount: guests}
}

// confirmed books for the guest and confirms through the front desk.
func (e *env) confirmed(t *testing.T, in, out string) domain.Booking {
	t.Helper()
	ctx := context.Background()
	b, err := e.bookings.Create(ctx, guest, req(e.room.ID, in, out, 1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, err = e.bookings.SetStatus(ctx, desk, b.ID, "confirmed")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	return b
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("want %v, got %v", target, err)
	}
}
