package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homematch/auth"
	"homematch/db"
	"homematch/match"
	"homematch/outbox"
	"homematch/profile"
	"homematch/property"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connString := os.Getenv("DATABASE_URL")
	pool, err := db.NewPool(ctx, connString)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	writer := outbox.NewWriter()
	server := &Server{
		authService:      auth.NewService(auth.NewRepository(pool), jwtSecret),
		formationService: match.NewFormationService(pool, nil, nil, writer),
		queryService:     match.NewQueryService(pool),
		lifecycleService: match.NewLifecycleService(pool, nil, writer),
		propertyService:  property.NewService(property.NewRepository(pool)),
		profileRepo:      profile.NewRepository(pool),
	}

	dispatcher := outbox.NewDispatcher(pool, outbox.LogNotifier())
	go func() {
		if err := dispatcher.Run(ctx, 2*time.Second); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("outbox dispatcher stopped: %v", err)
		}
	}()

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("homematch api listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("serve: %v", err)
	}
}
