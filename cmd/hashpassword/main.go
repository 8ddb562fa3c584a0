// cmd/hashpassword/main.go
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/pkg/auth"
)

// Prints the bcrypt hash an admin row would store for a password,
// using the same cost and strength rules as the API.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run ./cmd/hashpassword <password>")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	passwords := auth.NewPasswordManager(cfg)
	hash, err := passwords.HashPassword(os.Args[1])
	if err != nil {
		log.Fatalf("Error generating hash: %v", err)
	}

	if err := passwords.VerifyPassword(os.Args[1], hash); err != nil {
		log.Fatalf("Hash verification failed: %v", err)
	}

	fmt.Println(hash)
}
