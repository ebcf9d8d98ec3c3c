package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cinebook/seat-reservation/internal/booking"
	"github.com/cinebook/seat-reservation/internal/catalog"
	"github.com/cinebook/seat-reservation/internal/ledger"
	"github.com/cinebook/seat-reservation/internal/model"
	"github.com/cinebook/seat-reservation/internal/repository"
	"github.com/cinebook/seat-reservation/internal/seatmap"
)

// BookingHandler exposes the reservation lifecycle over HTTP: hold,
// confirm, cancel and the customer's booking history.
type BookingHandler struct {
	Coordinator *booking.Coordinator
	Catalog     *catalog.Catalog
	Ledger      *ledger.Ledger
}

func NewBookingHandler(coord *booking.Coordinator, cat *catalog.Catalog, lg *ledger.Ledger) *BookingHandler {
	return &BookingHandler{Coordinator: coord, Catalog: cat, Ledger: lg}
}

type holdReq struct {
	SeatIDs []uint64 `json:"seat_ids"`
}

// Hold places an all-or-nothing hold on the requested seats of a
// showtime.  POST /v1/showtimes/:id/hold
func (h *BookingHandler) Hold(c echo.Context) error {
	showtimeID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req holdReq
	if err := c.Bind(&req); err != nil || len(req.SeatIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	st, err := h.Catalog.Showtime(ctx, showtimeID)
	if err != nil {
		if errors.Is(err, repository.ErrShowtimeNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if st.Status != model.ShowtimeActive {
		return writeBookingError(c, booking.ErrShowtimeClosed)
	}

	prices, err := h.Catalog.SeatPrices(ctx, showtimeID, req.SeatIDs)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	for _, sid := range req.SeatIDs {
		if _, ok := prices[sid]; !ok {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown seat in request", "seat_id": sid})
		}
	}

	rec, err := h.Coordinator.HoldSeats(ctx, showtimeID, userID, req.SeatIDs, prices)
	if err != nil {
		return writeBookingError(c, err)
	}
	return c.JSON(http.StatusCreated, rec)
}

// Confirm finalizes a held reservation.  Confirming twice returns the
// same record with 200 both times.  POST /v1/reservations/:token/confirm
func (h *BookingHandler) Confirm(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reservation token required"})
	}
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.authorize(c, token, userID); err != nil {
		return writeBookingError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Coordinator.Confirm(ctx, token)
	if err != nil {
		return writeBookingError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// Cancel releases a held reservation.  DELETE /v1/reservations/:token
func (h *BookingHandler) Cancel(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reservation token required"})
	}
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.authorize(c, token, userID); err != nil {
		return writeBookingError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Coordinator.Cancel(ctx, token)
	if err != nil {
		return writeBookingError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// Get returns the current state of one reservation.
// GET /v1/reservations/:token
func (h *BookingHandler) Get(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reservation token required"})
	}
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	rec, err := h.Coordinator.Get(token)
	if err != nil {
		return writeBookingError(c, err)
	}
	if rec.CustomerID != userID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}
	return c.JSON(http.StatusOK, rec)
}

// History lists the caller's reservations, newest first by default.
// GET /v1/my-reservations?sort=newest|oldest|price_desc|price_asc
func (h *BookingHandler) History(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	key, err := ledger.ParseSortKey(c.QueryParam("sort"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid sort key"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	recs, err := h.Ledger.History(ctx, userID, key)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "history unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": recs, "count": len(recs)})
}

// authorize hides other customers' reservations behind a 404 rather
// than revealing their existence with a 403.
func (h *BookingHandler) authorize(c echo.Context, token string, userID uint64) error {
	rec, err := h.Coordinator.Get(token)
	if err != nil {
		return err
	}
	if rec.CustomerID != userID {
		return seatmap.ErrNotFound
	}
	return nil
}

// writeBookingError maps booking and seat-map errors onto HTTP statuses.
func writeBookingError(c echo.Context, err error) error {
	var conflict *seatmap.ConflictError
	var store *booking.StoreError
	switch {
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":   "seat unavailable",
			"seat_id": conflict.SeatID,
		})
	case errors.Is(err, seatmap.ErrExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "hold expired"})
	case errors.Is(err, seatmap.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	case errors.Is(err, booking.ErrAlreadyFinal):
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation already finalized"})
	case errors.Is(err, booking.ErrShowtimeClosed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "showtime not open for booking"})
	case errors.As(err, &store):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unavailable, try again"})
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
}
