// Command migrate applies the schema for every persistent model.
package main

import (
	"log"

	"creditfeed/internal/config"
	"creditfeed/internal/database"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}

	// Connect only migrates outside production; this command always does.
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	log.Println("schema is up to date")
}
