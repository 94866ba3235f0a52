// Command main runs the database seeder for CreditFeed.
package main

import (
	"context"
	"flag"
	"log"

	"creditfeed/internal/config"
	"creditfeed/internal/database"
	"creditfeed/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	itemsPerSource := flag.Int("items", 25, "Content items to create per source")
	interactions := flag.Int("interactions", 200, "Random save/share/report interactions to apply")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	skipBcrypt := flag.Bool("fast", false, "Store the default password unhashed (tests only)")
	randSeed := flag.Int64("seed", 0, "Random seed; 0 seeds from the clock")
	completeProfile := flag.Bool("complete-profiles", true, "Award the profile bonus to users with a complete profile")
	flag.Parse()

	log.Printf("Target: %d users, %d items per source, %d interactions, clean=%v",
		*numUsers, *itemsPerSource, *interactions, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	summary, err := seed.Seed(context.Background(), db, seed.Options{
		NumUsers:        *numUsers,
		ItemsPerSource:  *itemsPerSource,
		Interactions:    *interactions,
		ShouldClean:     *shouldClean,
		SkipBcrypt:      *skipBcrypt,
		RandSeed:        *randSeed,
		CompleteProfile: *completeProfile,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d items, %d saves, %d shares, %d reports",
		summary.Users, summary.Items, summary.Saves, summary.Shares, summary.Reports)
	log.Printf("All seeded users have the password: %s", seed.DefaultPassword)
}
