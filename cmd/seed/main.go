// Command main runs the database seeder for Haven.
package main

import (
	"flag"
	"log"

	"haven/internal/config"
	"haven/internal/database"
	"haven/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	exchanges := flag.Int("exchanges", 3, "Chat exchanges per user")
	entries := flag.Int("entries", 4, "Journal entries per user")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if _, err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(database.DB)

	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	users, err := s.SeedUsers(*numUsers)
	if err != nil {
		log.Fatalf("User seeding failed: %v", err)
	}
	if err := s.SeedConversations(users, *exchanges); err != nil {
		log.Fatalf("Conversation seeding failed: %v", err)
	}
	if err := s.SeedJournals(users, *entries); err != nil {
		log.Fatalf("Journal seeding failed: %v", err)
	}

	log.Printf("Seeded %d users with conversations and journals.", len(users))
	log.Printf("All test users have the password: %s", seed.SharedPassword)
}
