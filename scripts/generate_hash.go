//go:build ignore

// generate_hash.go prints the argon2id hash of an operator token.
// Usage: go run scripts/generate_hash.go <token>
//
// Put the result in .env as ADMIN_TOKEN_HASH.
package main

import (
	"fmt"
	"os"

	"civicpulse.app/engagement/internal/api"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run scripts/generate_hash.go <token>")
		os.Exit(1)
	}

	hash, err := api.HashToken(os.Args[1])
	if err != nil {
		fmt.Printf("Failed to hash token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Token hash (put in .env as ADMIN_TOKEN_HASH):")
	fmt.Println(hash)
}
