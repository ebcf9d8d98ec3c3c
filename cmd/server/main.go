package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/cinebook/seat-reservation/internal/booking"
	"github.com/cinebook/seat-reservation/internal/catalog"
	"github.com/cinebook/seat-reservation/internal/config"
	"github.com/cinebook/seat-reservation/internal/database"
	"github.com/cinebook/seat-reservation/internal/handler"
	"github.com/cinebook/seat-reservation/internal/ledger"
	"github.com/cinebook/seat-reservation/internal/notify"
	"github.com/cinebook/seat-reservation/internal/queue"
	"github.com/cinebook/seat-reservation/internal/repository"
	"github.com/cinebook/seat-reservation/internal/router"
	"github.com/cinebook/seat-reservation/internal/seatmap"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil when Redis is unavailable

	seats := seatmap.New()
	lg := ledger.New(ledger.NewMySQLStore(db))

	var sink notify.Sink
	if os.Getenv("NOTIFY_DISABLED") == "true" {
		sink = notify.LogSink{}
	} else {
		sink = notify.NewAMQPSink(notify.BrokerURL())
	}

	coord := booking.New(seats, lg, sink, time.Duration(cfg.HoldTTLSec)*time.Second)

	showtimes := repository.NewShowtimeStore(db)
	inventory := repository.NewSeatStore(db)
	cat := catalog.New(showtimes, inventory, seats)

	// Rebuild live state: register every ACTIVE showtime's inventory,
	// then replay the ledger so surviving holds and sales reappear.
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	active, err := cat.RegisterActive(startCtx)
	if err != nil {
		cancelStart()
		log.Fatalf("startup: registering active showtimes: %v", err)
	}
	for _, id := range active {
		if err := coord.Restore(startCtx, id); err != nil {
			cancelStart()
			log.Fatalf("startup: replaying showtime %d: %v", id, err)
		}
	}
	cancelStart()
	log.Printf("startup: %d active showtime(s) restored", len(active))

	sweeper := seatmap.NewSweeper(seats, time.Duration(cfg.SweepSec)*time.Second)
	sweeper.Start(context.Background())

	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("queue: consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.RegisterRoutes(e, router.Deps{
		Auth:      handler.NewAuthHandler(cfg, repository.NewUserStore(db), repository.NewTokenStore(db)),
		Browse:    handler.NewBrowseHandler(cat),
		Booking:   handler.NewBookingHandler(coord, cat, lg),
		Admin:     handler.NewAdminHandler(cat, lg),
		JWTSecret: cfg.JWTSecret,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		Redis:     rdb,
	})

	go func() {
		addr := ":" + cfg.Port
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: http server: %v", err)
	}

	// Stop background work before the database goes away: the sweeper
	// first, then the expiry timers that would otherwise append into a
	// closed store.
	sweeper.Stop()
	coord.Close()
	if rdb != nil {
		_ = rdb.Close()
	}
}
