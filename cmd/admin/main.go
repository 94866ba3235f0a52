// Command admin provides account and ledger maintenance utilities.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"creditfeed/internal/cache"
	"creditfeed/internal/config"
	"creditfeed/internal/database"
	"creditfeed/internal/models"
	"creditfeed/internal/repository"
	"creditfeed/internal/service"

	"gorm.io/gorm"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/admin promote <user_id>   - Promote user to admin")
		fmt.Println("  go run ./cmd/admin demote <user_id>    - Demote admin to user")
		fmt.Println("  go run ./cmd/admin list-admins         - List all admins")
		fmt.Println("  go run ./cmd/admin reconcile           - Report balance drift for every user")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Role changes must evict the API's cached user rows.
	cache.InitRedis(cfg.RedisURL)

	switch command := os.Args[1]; command {
	case "promote", "demote":
		if len(os.Args) < 3 {
			fmt.Printf("Usage: go run ./cmd/admin %s <user_id>\n", command)
			os.Exit(1)
		}
		role := models.RoleAdmin
		if command == "demote" {
			role = models.RoleUser
		}
		setRole(db, os.Args[2], role)
	case "list-admins":
		listAdmins(db)
	case "reconcile":
		if drifted := reconcileAll(db); drifted > 0 {
			os.Exit(2)
		}
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func setRole(db *gorm.DB, rawID string, role models.Role) {
	id, err := strconv.ParseUint(rawID, 10, 32)
	if err != nil {
		log.Fatalf("Invalid user ID %q: %v", rawID, err)
	}

	if err := repository.NewUserRepository(db).SetRole(context.Background(), uint(id), role); err != nil {
		log.Fatalf("Failed to update role: %v", err)
	}
	fmt.Printf("User %d is now %s\n", id, role)
}

func listAdmins(db *gorm.DB) {
	var admins []models.User
	if err := db.Where("role = ?", models.RoleAdmin).Order("id").Find(&admins).Error; err != nil {
		log.Fatalf("Failed to list admins: %v", err)
	}
	if len(admins) == 0 {
		fmt.Println("No admins found")
		return
	}
	for _, u := range admins {
		fmt.Printf("%d\t%s\t%s\n", u.ID, u.Username, u.Email)
	}
}

// reconcileAll prints every user whose balance disagrees with the ledger and
// returns how many did.
func reconcileAll(db *gorm.DB) int {
	ledger := service.NewCreditLedger(db, repository.NewUserRepository(db), repository.NewCreditRepository(db))

	var ids []uint
	if err := db.Model(&models.User{}).Order("id").Pluck("id", &ids).Error; err != nil {
		log.Fatalf("Failed to list users: %v", err)
	}

	drifted := 0
	for _, id := range ids {
		report, err := ledger.Reconcile(context.Background(), id)
		if err != nil {
			log.Fatalf("Failed to reconcile user %d: %v", id, err)
		}
		if report.Drift != 0 {
			drifted++
			fmt.Printf("user %d: balance=%d expected=%d drift=%+d\n", id, report.Balance, report.Expected, report.Drift)
		}
	}
	fmt.Printf("%d users checked, %d with drift\n", len(ids), drifted)
	return drifted
}
