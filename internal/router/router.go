// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/cinebook/seat-reservation/internal/config"
	"github.com/cinebook/seat-reservation/internal/handler"
	"github.com/cinebook/seat-reservation/internal/middleware"
)

// Deps carries everything route registration needs.
type Deps struct {
	Auth    *handler.AuthHandler
	Browse  *handler.BrowseHandler
	Booking *handler.BookingHandler
	Admin   *handler.AdminHandler

	JWTSecret string
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Redis     *redis.Client
}

// RegisterRoutes registers every route group.  Public browse endpoints
// get the Redis response cache; auth and booking endpoints get the
// token-bucket rate limiter; admin endpoints additionally require the
// OWNER role.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	limiter := middleware.NewTokenBucket(d.RateLimit, d.Redis)
	cache := middleware.NewRedisCache(d.Cache, d.Redis)

	// Unauthenticated auth operations.
	authGroup := e.Group("/v1/auth", limiter)
	authGroup.POST("/register", d.Auth.Register)
	authGroup.POST("/login", d.Auth.Login)
	authGroup.POST("/refresh", d.Auth.Refresh)
	authGroup.POST("/refresh-access", d.Auth.RefreshAccess)
	authGroup.POST("/logout", d.Auth.Logout)

	// Public browsing, no session required.  Seat availability is
	// deliberately not cached: a stale seat grid invites conflicts.
	e.GET("/v1/movies/:id/showtimes", d.Browse.ShowtimesByMovie, cache)
	e.GET("/v1/rooms/:id/showtimes", d.Browse.ShowtimesByRoom, cache)
	e.GET("/v1/showtimes/:id", d.Browse.Showtime, cache)
	e.GET("/v1/showtimes/:id/seats", d.Browse.Seats)

	// Booking requires a valid access token.
	booked := e.Group("/v1", middleware.JWTAuth(d.JWTSecret), middleware.RequireRole("OWNER", "CUSTOMER"), limiter)
	booked.GET("/me", d.Auth.Me)
	booked.POST("/logout-all", d.Auth.LogoutAll)
	booked.POST("/showtimes/:id/hold", d.Booking.Hold)
	booked.GET("/reservations/:token", d.Booking.Get)
	booked.POST("/reservations/:token/confirm", d.Booking.Confirm)
	booked.DELETE("/reservations/:token", d.Booking.Cancel)
	booked.GET("/my-reservations", d.Booking.History)

	// Management surface, OWNER only.
	admin := e.Group("/v1/admin", middleware.JWTAuth(d.JWTSecret), middleware.RequireRole("OWNER"))
	admin.POST("/rooms", d.Admin.CreateRoom)
	admin.POST("/showtimes", d.Admin.CreateShowtime)
	admin.PATCH("/showtimes/:id/status", d.Admin.Transition)
	admin.GET("/showtimes/:id/reservations", d.Admin.Reservations)
}
