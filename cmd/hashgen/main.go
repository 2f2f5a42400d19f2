package main

import (
	"os"

	"github.com/fatih/color"
	"golang.org/x/crypto/bcrypt"
)

// Generates a bcrypt hash for seeding user_credentials, or verifies a
// password against an existing hash.
//
//	go run ./cmd/hashgen <password>
//	go run ./cmd/hashgen <password> <hash>
func main() {
	if len(os.Args) < 2 {
		color.Yellow("usage: hashgen <password> [hash-to-verify]")
		os.Exit(1)
	}
	password := os.Args[1]

	if len(os.Args) >= 3 {
		if err := bcrypt.CompareHashAndPassword([]byte(os.Args[2]), []byte(password)); err != nil {
			color.Red("✗ Password does NOT match hash")
			os.Exit(1)
		}
		color.Green("✓ Password matches hash")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		color.Red("Failed to hash password: %v", err)
		os.Exit(1)
	}
	color.Cyan("bcrypt hash:")
	color.Green("%s", string(hash))
}
