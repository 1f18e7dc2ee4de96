package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	httpserver "hotel_booking/internal/adapters/http_server"
	"hotel_booking/internal/app"
	"hotel_booking/internal/domain"
	"hotel_booking/internal/storage/memory"
)

var (
	guest   = domain.Principal{ID: 10, Role: domain.RoleCustomer}
	other   = domain.Principal{ID: 11, Role: domain.RoleCustomer}
	desk    = domain.Principal{ID: 20, Role: domain.RoleFrontDesk}
	manager = domain.Principal{ID: 30, Role: domain.RoleManager}
)

type api struct {
	t      *testing.T
	h      http.Handler
	auth   *httpserver.Authenticator
	roomID int64
}

func newAPI(t *testing.T) *api {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	for _, u := range []domain.User{
		{ID: guest.ID, Name: "Ana", Email: "ana@example.com", Role: domain.RoleCustomer, Active: true},
		{ID: other.ID, Name: "Bob", Email: "bob@example.com", Role: domain.RoleCustomer, Active: true},
		{ID: desk.ID, Name: "Desk", Email: "desk@hotel.test", Role: domain.RoleFrontDesk, Active: true},
		{ID: manager.ID, Name: "Boss", Email: "boss@hotel.test", Role: domain.RoleManager, Active: true},
	} {
		u := u
		if err := store.CreateUser(ctx, &u); err != nil {
			t.Fatal(err)
		}
	}

	now := func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	log := zerolog.Nop()
	reports := app.NewOccupancyService(store, nil, 0, log, now)
	rooms := app.NewRoomService(store, reports, log)
	h := &httpserver.Handlers{
		Bookings: app.NewBookingService(store, nil, reports, log, app.BookingConfig{BcryptCost: bcrypt.MinCost, Now: now}),
		Avail:    app.NewAvailabilityService(store),
		Reports:  reports,
		Rooms:    rooms,
		Log:      log,
	}
	auth := httpserver.NewAuthenticator("test-secret")
	srv := httpserver.New(log, auth, 5*time.Second)
	srv.MountHandlers(h)

	room, err := rooms.Create(ctx, manager, domain.Room{
		PropertyID: 1, Number: "101", Type: domain.RoomStandard, Price: domain.MoneyFromFloat(100), Capacity: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	return &api{t: t, h: srv.Mux(), auth: auth, roomID: room.ID}
}

func (a *api) do(method, path string, as *domain.Principal, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		tok, err := a.auth.Sign(*as, time.Hour)
		if err != nil {
			a.t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	return rec
}

func booking(roomID int64, in, out string, guests int) map[string]any {
	return map[string]any{"roomId": roomID, "checkInDate": in, "checkOutDate": out, "guestCount": guests}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

type bookingBody struct {
	ID            int64   `json:"id"`
	BookingNumber string  `json:"bookingNumber"`
	Nights        int     `json:"nights"`
	TotalAmount   float64 `json:"totalAmount"`
	Status        string  `json:"status"`
	CheckInDate   string  `json:"checkInDate"`
}

type availabilityBody struct {
	RoomID      int64  `json:"roomId"`
	IsAvailable bool   `json:"isAvailable"`
	CheckInDate string `json:"checkInDate"`
}

type problemBody struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func TestHealthz(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestCreateBooking_LifecycleOverHTTP(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodPost, "/v1/bookings", &guest, booking(a.roomID, "2024-06-01", "2024-06-05", 2))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	first := decodeBody[bookingBody](t, rec)
	if first.Status != "pending" || first.Nights != 4 || first.TotalAmount != 400 || !strings.HasPrefix(first.BookingNumber, "BK") {
		t.Fatalf("unexpected booking: %+v", first)
	}

	rec = a.do(http.MethodPut, "/v1/bookings/"+itoa(first.ID)+"/status", &desk, map[string]string{"status": "confirmed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", rec.Code, rec.Body.String())
	}

	// back-to-back stay is accepted
	rec = a.do(http.MethodPost, "/v1/bookings", &other, booking(a.roomID, "2024-06-05", "2024-06-07", 1))
	if rec.Code != http.StatusCreated {
		t.Fatalf("adjacent: %d %s", rec.Code, rec.Body.String())
	}
	if b := decodeBody[bookingBody](t, rec); b.Nights != 2 || b.TotalAmount != 200 {
		t.Fatalf("adjacent booking: %+v", b)
	}

	rec = a.do(http.MethodPost, "/v1/bookings", &other, booking(a.roomID, "2024-06-03", "2024-06-06", 1))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("overlap: %d %s", rec.Code, rec.Body.String())
	}
	if p := decodeBody[problemBody](t, rec); !strings.Contains(p.Detail, "2024-06-01") {
		t.Fatalf("overlap detail should name the booked range: %+v", p)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content type %q", ct)
	}
}

func TestCreateBooking_Rejections(t *testing.T) {
	a := newAPI(t)
	cases := []struct {
		name string
		body any
		code int
	}{
		{"capacity", booking(a.roomID, "2024-06-01", "2024-06-02", 5), http.StatusBadRequest},
		{"past", booking(a.roomID, "2024-04-01", "2024-04-02", 1), http.StatusBadRequest},
		{"same day", booking(a.roomID, "2024-06-01", "2024-06-01", 1), http.StatusBadRequest},
		{"bad date", booking(a.roomID, "06/01/2024", "2024-06-02", 1), http.StatusBadRequest},
		{"missing room", booking(999, "2024-06-01", "2024-06-02", 1), http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := a.do(http.MethodPost, "/v1/bookings", &guest, tc.body)
			if rec.Code != tc.code {
				t.Fatalf("got %d %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAuthAndRoles(t *testing.T) {
	a := newAPI(t)

	if rec := a.do(http.MethodPost, "/v1/bookings", nil, booking(a.roomID, "2024-06-01", "2024-06-02", 1)); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/bookings/my-bookings", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", rec.Code)
	}

	walkIn := booking(a.roomID, "2024-06-01", "2024-06-02", 1)
	walkIn["guestName"] = "Walk In"
	walkIn["guestEmail"] = "walk@example.com"
	if rec := a.do(http.MethodPost, "/v1/bookings/walk-in", &guest, walkIn); rec.Code != http.StatusForbidden {
		t.Fatalf("customer walk-in: %d", rec.Code)
	}
	if rec := a.do(http.MethodGet, "/v1/bookings", &guest, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("customer list: %d", rec.Code)
	}
	if rec := a.do(http.MethodPost, "/v1/rooms", &desk, map[string]any{}); rec.Code != http.StatusForbidden {
		t.Fatalf("front desk room create: %d", rec.Code)
	}
	if rec := a.do(http.MethodGet, "/v1/bookings/reports/occupancy?propertyId=1", &desk, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("front desk report: %d", rec.Code)
	}
}

func TestWalkIn_ValidatesEmailAndConfirms(t *testing.T) {
	a := newAPI(t)
	body := booking(a.roomID, "2024-06-01", "2024-06-03", 1)
	body["guestName"] = "Walk In"
	body["guestEmail"] = "not-an-email"

	rec := a.do(http.MethodPost, "/v1/bookings/walk-in", &desk, body)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "guestEmail") {
		t.Fatalf("bad email: %d %s", rec.Code, rec.Body.String())
	}

	body["guestEmail"] = "walk@example.com"
	rec = a.do(http.MethodPost, "/v1/bookings/walk-in", &desk, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("walk-in: %d %s", rec.Code, rec.Body.String())
	}
	if b := decodeBody[bookingBody](t, rec); b.Status != "confirmed" {
		t.Fatalf("walk-in status %q", b.Status)
	}
}

func TestGetBooking_OwnershipAndCancel(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodPost, "/v1/bookings", &guest, booking(a.roomID, "2024-06-01", "2024-06-03", 1))
	b := decodeBody[bookingBody](t, rec)
	path := "/v1/bookings/" + itoa(b.ID)

	if rec := a.do(http.MethodGet, path, &guest, nil); rec.Code != http.StatusOK {
		t.Fatalf("owner get: %d", rec.Code)
	}
	if rec := a.do(http.MethodGet, path, &other, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("other get: %d", rec.Code)
	}
	if rec := a.do(http.MethodGet, "/v1/bookings/424242", &desk, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing: %d", rec.Code)
	}
	if rec := a.do(http.MethodPut, path+"/cancel", &other, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("other cancel: %d", rec.Code)
	}

	rec = a.do(http.MethodPut, path+"/cancel", &guest, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[bookingBody](t, rec); got.Status != "checked_out" {
		t.Fatalf("cancel status %q", got.Status)
	}

	rec = a.do(http.MethodPut, path+"/status", &desk, map[string]string{"status": "lost"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid status: %d", rec.Code)
	}
}

func TestCheckAvailability(t *testing.T) {
	a := newAPI(t)
	q := "/v1/bookings/check-availability?roomId=" + itoa(a.roomID) + "&checkInDate=2024-06-01&checkOutDate=2024-06-03"

	rec := a.do(http.MethodGet, q, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("%d %s", rec.Code, rec.Body.String())
	}
	got := decodeBody[availabilityBody](t, rec)
	if !got.IsAvailable || got.RoomID != a.roomID || got.CheckInDate != "2024-06-01" {
		t.Fatalf("unexpected: %+v", got)
	}

	rec = a.do(http.MethodGet, "/v1/bookings/check-availability?roomId="+itoa(a.roomID), nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing dates: %d", rec.Code)
	}
}

func TestRooms_ETagAndAdmin(t *testing.T) {
	a := newAPI(t)
	path := "/v1/rooms/" + itoa(a.roomID)

	rec := a.do(http.MethodGet, path, nil, nil)
	etag := rec.Header().Get("ETag")
	if rec.Code != http.StatusOK || etag == "" {
		t.Fatalf("get: %d etag=%q", rec.Code, etag)
	}
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Fatalf("conditional get: %d", rec.Code)
	}

	rec = a.do(http.MethodPost, "/v1/rooms", &manager, map[string]any{
		"propertyId": 1, "roomNumber": "101", "type": "suite", "price": 250, "capacity": 3,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate number: %d %s", rec.Code, rec.Body.String())
	}
	rec = a.do(http.MethodPost, "/v1/rooms", &manager, map[string]any{
		"propertyId": 1, "roomNumber": "102", "type": "penthouse", "price": 250, "capacity": 3,
	})
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "type") {
		t.Fatalf("bad type: %d %s", rec.Code, rec.Body.String())
	}

	rec = a.do(http.MethodPut, path, &manager, map[string]any{"maintenance": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}
	rec = a.do(http.MethodPost, "/v1/bookings", &guest, booking(a.roomID, "2024-06-01", "2024-06-02", 1))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("maintenance room booked: %d", rec.Code)
	}
}

func TestOccupancyReport(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodPost, "/v1/bookings/walk-in", &desk, map[string]any{
		"roomId": a.roomID, "checkInDate": "2024-06-01", "checkOutDate": "2024-06-03", "guestCount": 1,
		"guestName": "W", "guestEmail": "w@example.com",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("walk-in: %d %s", rec.Code, rec.Body.String())
	}

	rec = a.do(http.MethodGet, "/v1/bookings/reports/occupancy?propertyId=1&startDate=2024-06-01&endDate=2024-06-02", &manager, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("report: %d %s", rec.Code, rec.Body.String())
	}
	rep := decodeBody[app.OccupancyReport](t, rec)
	if rep.TotalRooms != 1 || rep.Period.TotalDays != 2 || rep.Summary.AverageOccupancyRate != 100 {
		t.Fatalf("unexpected report: %+v", rep)
	}

	rec = a.do(http.MethodGet, "/v1/bookings/reports/occupancy", &manager, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing propertyId: %d", rec.Code)
	}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
