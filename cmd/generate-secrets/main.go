package main

import (
	"fmt"
	"log"

	"github.com/Joshlanuevo/ferry-api/internal/utils"
)

func main() {
	fmt.Println("===========================================")
	fmt.Println("Secret Generator for the ferry booking API")
	fmt.Println("===========================================")
	fmt.Println()

	jwtSecret, encryptionKey, err := utils.GenerateServiceSecrets()
	if err != nil {
		log.Fatalf("Failed to generate secrets: %v", err)
	}

	fmt.Println("Add these to your .env file or secret manager:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", jwtSecret)
	fmt.Printf("TOKEN_ENCRYPTION_KEY=%s\n", encryptionKey)
	fmt.Println()
	fmt.Println("Rotating TOKEN_ENCRYPTION_KEY discards the stored reseller token; the next request re-authenticates.")
	fmt.Println("===========================================")
}
