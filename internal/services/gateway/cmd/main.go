package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/croplogic/irrigo/internal/services/gateway/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()

	gw := app.NewGateway(app.Config{
		DecisionBaseURL:    cfg.DecisionURL,
		PersistenceBaseURL: cfg.PersistenceURL,
		EventsBaseURL:      cfg.EventURL,
		HTTPTimeout:        time.Duration(cfg.TimeoutMs) * time.Millisecond,
		BreakerFailures:    cfg.CBFails,
		BreakerOpenFor:     time.Duration(cfg.CBOpenMs) * time.Millisecond,
		BreakerInterval:    time.Duration(cfg.CBIntervalMs) * time.Millisecond,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", gw.HandleHealth)
	mux.HandleFunc("GET /dashboard/data", gw.HandleDashboard)
	mux.HandleFunc("POST /api/recommendation/{field}", gw.HandleRecommendation)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("gateway listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	log.Println("gateway: shutdown complete")
}
