// Command refresh runs one feed refresh and prints the per-source result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"creditfeed/internal/bootstrap"
	"creditfeed/internal/config"
	"creditfeed/internal/repository"
	"creditfeed/internal/service"
)

func main() {
	limit := flag.Int("limit", 0, "Items to fetch per source (defaults to FEED_FETCH_LIMIT)")
	timeout := flag.Duration("timeout", time.Minute, "Overall deadline for the refresh")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	rt, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	fetchLimit := *limit
	if fetchLimit <= 0 {
		fetchLimit = cfg.FeedFetchLimit
	}

	feed := service.NewFeedService(
		repository.NewContentRepository(rt.DB),
		repository.NewUserRepository(rt.DB),
		bootstrap.Suppliers(cfg, rt.Redis, rt.Flags),
		service.FeedServiceOptions{
			FetchLimit:      fetchLimit,
			SupplierTimeout: cfg.SupplierTimeout(),
			StorageTimeout:  cfg.StorageTimeout(),
		},
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	result := feed.Refresh(ctx)
	cancel()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Printf("Failed to print result: %v", err)
	}

	rt.Close(context.Background())
	if !result.Success {
		os.Exit(1)
	}
}
