package mailer_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hotel_booking/internal/adapters/mailer"
	"hotel_booking/internal/domain"
)

func notice() domain.BookingNotice {
	return domain.BookingNotice{
		MessageID:     "msg-1",
		BookingID:     7,
		Reference:     "BK1234567801",
		GuestName:     "Ana",
		GuestEmail:    "ana@example.com",
		RoomNumber:    "101",
		CheckIn:       "2024-06-01",
		CheckOut:      "2024-06-03",
		Nights:        2,
		TotalAmount:   domain.MoneyFromFloat(200),
		Status:        "pending",
	}
}

func TestNotifyBooking_RetriesWithSameIdempotencyKey(t *testing.T) {
	var (
		hits int32
		mu   sync.Mutex
		keys []string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		mu.Unlock()
		if r.Header.Get("X-API-Key") != "test-key" || r.URL.Path != "/messages" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch atomic.AddInt32(&hits, 1) {
		case 1:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			var m struct {
				To   string `json:"to"`
				Data struct {
					BookingNumber string `json:"bookingNumber"`
				} `json:"data"`
			}
			if err := json.NewDecoder(r.Body).Decode(&m); err != nil || m.To != "ana@example.com" || m.Data.BookingNumber != "BK1234567801" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusAccepted)
		}
	}))
	defer ts.Close()

	cl, err := mailer.New(ts.URL, "test-key", 100)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cl.NotifyBooking(ctx, notice()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
	for _, k := range keys {
		if k != "msg-1" {
			t.Fatalf("idempotency keys = %v", keys)
		}
	}
}

func TestNotifyBooking_PermanentFailures(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, mailer.ErrUnauthorized},
		{http.StatusUnprocessableEntity, mailer.ErrRejected},
	}
	for _, tc := range cases {
		var hits int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			w.WriteHeader(tc.status)
		}))
		cl, _ := mailer.New(ts.URL, "test-key", 100)
		err := cl.NotifyBooking(context.Background(), notice())
		ts.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: want %v, got %v", tc.status, tc.want, err)
		}
		if hits != 1 {
			t.Fatalf("status %d should not be retried, got %d calls", tc.status, hits)
		}
	}
}

func TestNotifyBooking_DuplicateIsSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer ts.Close()
	cl, _ := mailer.New(ts.URL, "test-key", 100)
	if err := cl.NotifyBooking(context.Background(), notice()); err != nil {
		t.Fatalf("conflict on a replayed key should count as delivered: %v", err)
	}
}

func TestNotifyBooking_ContextBoundsRetries(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "10")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()
	cl, _ := mailer.New(ts.URL, "test-key", 100)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := cl.NotifyBooking(ctx, notice())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("retry wait ignored the context")
	}
}

func TestNew_RequiresKeyAndBase(t *testing.T) {
	if _, err := mailer.New("http://mail", "", 1); err == nil {
		t.Fatal("expected error without key")
	}
	if _, err := mailer.New("", "k", 1); err == nil {
		t.Fatal("expected error without base URL")
	}
}

func TestNotifyBooking_RequiresRecipient(t *testing.T) {
	cl, _ := mailer.New("http://127.0.0.1:1", "k", 1)
	n := notice()
	n.GuestEmail = ""
	if err := cl.NotifyBooking(context.Background(), n); !errors.Is(err, mailer.ErrRejected) {
		t.Fatalf("want ErrRejected, got %v", err)
	}
}
