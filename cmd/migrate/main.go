// Command migrate applies (or drops) the database schema at deploy time.
// Schema changes never run from the live server.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	pgstore "bloomtrack/backend/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	drop := flag.Bool("drop", false, "drop all tables instead of creating them")
	flag.Parse()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pg, err := pgstore.New(ctx, databaseURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer func() {
		_ = pg.Close()
	}()

	if *drop {
		if err := pg.DropAll(ctx); err != nil {
			log.Fatalf("drop schema: %v", err)
		}
		log.Println("schema dropped")
		return
	}

	if err := pg.Migrate(ctx); err != nil {
		log.Fatalf("apply schema: %v", err)
	}
	log.Println("schema applied")
}
