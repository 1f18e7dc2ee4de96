// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hotel_booking/internal/app"
	"hotel_booking/internal/domain"
)

type Handlers struct {
	Bookings *app.BookingService
	Avail    *app.AvailabilityService
	Reports  *app.OccupancyService
	Rooms    *app.RoomService
	Log      zerolog.Logger
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1/rooms", func(r chi.Router) {
		r.Get("/", h.listRooms)
		r.Get("/search", h.searchRooms)
		r.Get("/{id}", h.getRoom)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireAuth, RequireRole(domain.RoleManager))
			r.Post("/", h.createRoom)
			r.Put("/{id}", h.updateRoom)
			r.Delete("/{id}", h.deleteRoom)
			r.Post("/{id}/images", h.addImage)
			r.Put("/{id}/images/{imageId}/primary", h.setPrimaryImage)
			r.Delete("/{id}/images/{imageId}", h.deleteImage)
		})
	})

	s.mux.Route("/v1/bookings", func(r chi.Router) {
		r.Get("/check-availability", h.checkAvailability)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireAuth)
			r.Get("/my-bookings", h.myBookings)
			r.Post("/", h.createBooking)
			r.Get("/{id}", h.getBooking)
			r.Put("/{id}/cancel", h.cancelBooking)

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(domain.RoleFrontDesk, domain.RoleManager))
				r.Get("/", h.listBookings)
				r.Post("/walk-in", h.walkIn)
				r.Put("/{id}/status", h.setStatus)
			})
			r.With(RequireRole(domain.RoleManager)).Get("/reports/occupancy", h.occupancy)
		})
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps the domain taxonomy onto HTTP. Conflicts are reported as 400 like other
// rejected requests; internal failures are logged here and hidden from the caller.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, title := http.StatusInternalServerError, "Internal Server Error"
	switch domain.KindOf(err) {
	case domain.KindValidation:
		status, title = http.StatusBadRequest, "Bad Request"
	case domain.KindConflict:
		status, title = http.StatusBadRequest, "Conflict"
	case domain.KindNotFound:
		status, title = http.StatusNotFound, "Not Found"
	case domain.KindUnauthorized:
		status, title = http.StatusForbidden, "Forbidden"
	default:
		h.Log.Error().Err(err).
			Str("route", routeOf(r)).
			Str("method", r.Method).
			Msg("request failed")
	}
	writeProblem(w, status, title, domain.PublicMessage(err))
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCacheable answers a GET with an ETag and honours If-None-Match.
func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("route", routeOf(r)).Msg("failed to write body")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// decode reads a JSON body into dst and runs its validate tags. It writes the 400 itself.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return false
	}
	if msg := validateStruct(dst); msg != "" {
		writeProblem(w, http.StatusBadRequest, "Validation Failed", msg)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", name+" must be a positive number")
		return 0, false
	}
	return id, true
}

// queryInt parses an optional numeric query parameter; absent yields 0.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid "+name, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func queryDate(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, true
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid "+name, name+" must be a date in YYYY-MM-DD format")
		return nil, false
	}
	return &d, true
}

func principal(r *http.Request) domain.Principal {
	p, _ := principalFrom(r.Context())
	return p
}

// ---- rooms ----

func (h *Handlers) listRooms(w http.ResponseWriter, r *http.Request) {
	pid, ok := queryInt(w, r, "propertyId")
	if !ok {
		return
	}
	q := domain.RoomsQuery{
		PropertyID: pid,
		Status:     domain.RoomStatus(r.URL.Query().Get("status")),
		Type:       domain.RoomType(r.URL.Query().Get("type")),
	}
	rooms, err := h.Rooms.List(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeCacheable(w, r, toRooms(rooms))
}

func (h *Handlers) searchRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.Rooms.SearchByNumber(r.Context(), r.URL.Query().Get("number"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeCacheable(w, r, toRooms(rooms))
}

func (h *Handlers) getRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	room, err := h.Rooms.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeCacheable(w, r, toRoom(room))
}

func (h *Handlers) createRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if !decode(w, r, &req) {
		return
	}
	room, err := h.Rooms.Create(r.Context(), principal(r), req.room())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRoom(room))
}

func (h *Handlers) updateRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req roomUpdateRequest
	if !decode(w, r, &req) {
		return
	}
	room, err := h.Rooms.Update(r.Context(), principal(r), id, req.patch())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoom(room))
}

func (h *Handlers) deleteRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Rooms.Delete(r.Context(), principal(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Room deleted successfully"})
}

func (h *Handlers) addImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req imageRequest
	if !decode(w, r, &req) {
		return
	}
	img, err := h.Rooms.AddImage(r.Context(), principal(r), id, req.URL, req.IsPrimary)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toImage(img))
}

func (h *Handlers) setPrimaryImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	imageID, ok := pathID(w, r, "imageId")
	if !ok {
		return
	}
	if err := h.Rooms.SetPrimaryImage(r.Context(), principal(r), id, imageID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Primary image updated"})
}

func (h *Handlers) deleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	imageID, ok := pathID(w, r, "imageId")
	if !ok {
		return
	}
	if err := h.Rooms.DeleteImage(r.Context(), principal(r), id, imageID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Image deleted successfully"})
}

// ---- bookings ----

func (h *Handlers) checkAvailability(w http.ResponseWriter, r *http.Request) {
	roomID, ok := queryInt(w, r, "roomId")
	if !ok {
		return
	}
	in, ok := queryDate(w, r, "checkInDate")
	if !ok {
		return
	}
	out, ok := queryDate(w, r, "checkOutDate")
	if !ok {
		return
	}
	if roomID == 0 || in == nil || out == nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "roomId, checkInDate and checkOutDate are required")
		return
	}
	stay := domain.DateRange{CheckIn: *in, CheckOut: *out}
	free, err := h.Avail.Check(r.Context(), roomID, stay)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{
		RoomID:       roomID,
		IsAvailable:  free,
		CheckInDate:  in.Format(domain.DateLayout),
		CheckOutDate: out.Format(domain.DateLayout),
	})
}

func (h *Handlers) createBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if !decode(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	b, err := h.Bookings.Create(r.Context(), principal(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBooking(b))
}

func (h *Handlers) walkIn(w http.ResponseWriter, r *http.Request) {
	var req walkInRequest
	if !decode(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	b, err := h.Bookings.CreateWalkIn(r.Context(), principal(r), app.WalkInInput{
		CreateBookingInput: in,
		GuestName:          req.GuestName,
		GuestEmail:         req.GuestEmail,
		GuestPhone:         req.GuestPhone,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBooking(b))
}

func (h *Handlers) getBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	b, err := h.Bookings.GetBooking(r.Context(), principal(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeCacheable(w, r, toBooking(b))
}

func (h *Handlers) listBookings(w http.ResponseWriter, r *http.Request) {
	guestID, ok := queryInt(w, r, "guestId")
	if !ok {
		return
	}
	roomID, ok := queryInt(w, r, "roomId")
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	out, err := h.Bookings.ListBookings(r.Context(), principal(r), domain.BookingsQuery{
		GuestID: guestID, RoomID: roomID, Limit: int(limit),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeCacheable(w, r, toBookings(out))
}

func (h *Handlers) myBookings(w http.ResponseWriter, r *http.Request) {
	out, err := h.Bookings.ListMyBookings(r.Context(), principal(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeCacheable(w, r, toBookings(out))
}

func (h *Handlers) setStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	b, err := h.Bookings.SetStatus(r.Context(), principal(r), id, req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBooking(b))
}

func (h *Handlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	b, err := h.Bookings.Cancel(r.Context(), principal(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBooking(b))
}

func (h *Handlers) occupancy(w http.ResponseWriter, r *http.Request) {
	pid, ok := queryInt(w, r, "propertyId")
	if !ok {
		return
	}
	start, ok := queryDate(w, r, "startDate")
	if !ok {
		return
	}
	end, ok := queryDate(w, r, "endDate")
	if !ok {
		return
	}
	rep, err := h.Reports.Report(r.Context(), principal(r), pid, start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
