// Command seed populates the ES Live development environment with demo
// accounts, chat messages and site settings.
package main

import (
	"context"
	"flag"
	"log"

	"eslive/internal/cache"
	"eslive/internal/config"
	"eslive/internal/database"
	"eslive/internal/seed"
	"eslive/internal/store"
)

func main() {
	numViewers := flag.Int("viewers", 25, "Number of viewer accounts to create")
	numMessages := flag.Int("messages", 60, "Number of chat messages to create")
	shouldClean := flag.Bool("clean", true, "Clear existing demo data before seeding")
	flag.Parse()

	log.Printf("Seeding: %d viewers, %d messages, clean=%v", *numViewers, *numMessages, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Seeded documents must outlive this process, so the in-memory
	// store is not an option here.
	cache.InitRedis(cfg.RedisURL)
	rdb := cache.GetClient()
	if rdb == nil {
		log.Fatal("Seeding requires Redis; set REDIS_URL and try again")
	}
	gw := store.NewRedisStore(rdb)

	s, err := seed.NewSeeder(db, gw)
	if err != nil {
		log.Fatalf("Failed to create seeder: %v", err)
	}

	ctx := context.Background()
	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	accounts, err := s.SeedViewers(ctx, *numViewers)
	if err != nil {
		log.Fatalf("Account seeding failed: %v", err)
	}
	if err := s.SeedChat(ctx, accounts, *numMessages); err != nil {
		log.Fatalf("Chat seeding failed: %v", err)
	}
	if err := s.SeedSettings(ctx); err != nil {
		log.Fatalf("Settings seeding failed: %v", err)
	}

	log.Println("All done. Demo accounts share the password: " + seed.DemoPassword)
}
