package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bloomtrack/backend/internal/cache"
	"bloomtrack/backend/internal/config"
	"bloomtrack/backend/internal/httpapi"
	"bloomtrack/backend/internal/service"
	"bloomtrack/backend/internal/store"
	"bloomtrack/backend/internal/store/memory"
	pgstore "bloomtrack/backend/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	reports := cache.ReportCache(cache.NoopReportCache{})
	denylist := cache.TokenDenylist(cache.NewMemoryDenylist())
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using in-process cache and denylist", err)
		} else {
			reports = redisCache
			denylist = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: in-process")
	}

	svc := service.New(repo, reports, time.Duration(cfg.ReportCacheTTLSeconds)*time.Second)
	auth := httpapi.NewAuthManager(cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour, repo, denylist)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("bloomtrack backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be set and at least 32 characters")
	}
	if isPlaceholderSecret(cfg.JWTSecret) {
		return fmt.Errorf("JWT_SECRET looks like a placeholder; generate a random value")
	}
	return nil
}

// isPlaceholderSecret rejects secrets that were clearly copied from docs or
// never changed from a template.
func isPlaceholderSecret(secret string) bool {
	lowered := strings.ToLower(secret)
	for _, marker := range []string{"change-me", "changeme", "placeholder", "your-secret", "example"} {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
