package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cinebook/seat-reservation/internal/catalog"
	"github.com/cinebook/seat-reservation/internal/ledger"
	"github.com/cinebook/seat-reservation/internal/model"
	"github.com/cinebook/seat-reservation/internal/repository"
)

// AdminHandler serves the OWNER-only management surface: rooms,
// showtimes and their lifecycle.
type AdminHandler struct {
	Catalog *catalog.Catalog
	Ledger  *ledger.Ledger
}

func NewAdminHandler(cat *catalog.Catalog, lg *ledger.Ledger) *AdminHandler {
	return &AdminHandler{Catalog: cat, Ledger: lg}
}

type createRoomReq struct {
	Name     string `json:"name"`
	SeatRows uint32 `json:"seat_rows"`
	SeatCols uint32 `json:"seat_cols"`
}

type createShowtimeReq struct {
	MovieID        uint64    `json:"movie_id"`
	MovieTitle     string    `json:"movie_title"`
	RoomID         uint64    `json:"room_id"`
	StartsAt       time.Time `json:"starts_at"`
	BasePriceCents uint32    `json:"base_price_cents"`
}

type transitionReq struct {
	Status string `json:"status"`
}

// CreateRoom inserts a room.  POST /v1/admin/rooms
func (h *AdminHandler) CreateRoom(c echo.Context) error {
	var req createRoomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.SeatRows == 0 || req.SeatCols == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, seat_rows and seat_cols required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	room := &model.Room{Name: req.Name, SeatRows: req.SeatRows, SeatCols: req.SeatCols, IsActive: true}
	if err := h.Catalog.CreateRoom(ctx, room); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create room failed"})
	}
	return c.JSON(http.StatusCreated, room)
}

// CreateShowtime inserts a SCHEDULED showtime and its seat inventory.
// POST /v1/admin/showtimes
func (h *AdminHandler) CreateShowtime(c echo.Context) error {
	var req createShowtimeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.MovieTitle = strings.TrimSpace(req.MovieTitle)
	if req.MovieID == 0 || req.MovieTitle == "" || req.RoomID == 0 || req.StartsAt.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "movie_id, movie_title, room_id and starts_at required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	st, err := h.Catalog.CreateShowtime(ctx, req.MovieID, req.MovieTitle, req.RoomID, req.StartsAt, req.BasePriceCents)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRoomNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "room is not active"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create showtime failed"})
	}
	return c.JSON(http.StatusCreated, st)
}

// Transition changes a showtime's lifecycle status.
// PATCH /v1/admin/showtimes/:id/status
func (h *AdminHandler) Transition(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	var req transitionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	to := strings.ToUpper(strings.TrimSpace(req.Status))
	switch to {
	case model.ShowtimeActive, model.ShowtimeClosed, model.ShowtimeCancelled:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	st, err := h.Catalog.Transition(ctx, id, to)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrShowtimeNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
		case errors.Is(err, catalog.ErrBadTransition), errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "illegal status transition"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transition failed"})
	}
	return c.JSON(http.StatusOK, st)
}

// Reservations lists the full booking history of one showtime for
// auditing.  GET /v1/admin/showtimes/:id/reservations
func (h *AdminHandler) Reservations(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	recs, err := h.Ledger.ByShowtime(ctx, id)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "history unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": recs, "count": len(recs)})
}
