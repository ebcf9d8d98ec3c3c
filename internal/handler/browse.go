package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cinebook/seat-reservation/internal/catalog"
	"github.com/cinebook/seat-reservation/internal/repository"
	"github.com/cinebook/seat-reservation/internal/seatmap"
)

// BrowseHandler serves the public, read-only catalog endpoints.
type BrowseHandler struct {
	Catalog *catalog.Catalog
}

func NewBrowseHandler(cat *catalog.Catalog) *BrowseHandler {
	return &BrowseHandler{Catalog: cat}
}

// ShowtimesByMovie lists showtimes for one movie.
// GET /v1/movies/:id/showtimes
func (h *BrowseHandler) ShowtimesByMovie(c echo.Context) error {
	movieID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sts, err := h.Catalog.ByMovie(ctx, movieID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"showtimes": sts, "count": len(sts)})
}

// ShowtimesByRoom lists showtimes hosted in one room.
// GET /v1/rooms/:id/showtimes
func (h *BrowseHandler) ShowtimesByRoom(c echo.Context) error {
	roomID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sts, err := h.Catalog.ByRoom(ctx, roomID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"showtimes": sts, "count": len(sts)})
}

// Showtime returns one showtime.  GET /v1/showtimes/:id
func (h *BrowseHandler) Showtime(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	st, err := h.Catalog.Showtime(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrShowtimeNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, st)
}

// Seats returns the live seat availability of an open showtime.
// GET /v1/showtimes/:id/seats
func (h *BrowseHandler) Seats(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	seats, err := h.Catalog.Availability(ctx, id)
	if err != nil {
		if errors.Is(err, seatmap.ErrNotFound) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "showtime not open for booking"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"showtime_id": id, "seats": seats})
}
