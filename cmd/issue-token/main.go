package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/Joshlanuevo/ferry-api/internal/config"
	"github.com/Joshlanuevo/ferry-api/pkg/jwt"
)

// issue-token signs an access token with the configured JWT secret, for
// local testing against a running server
func main() {
	userID := flag.String("user", "", "user id (required)")
	userType := flag.String("type", "AGENT", "account type: AGENT, SUBAGENT, ADMIN, SUPERADMIN")
	agencyID := flag.String("agency", "", "agency id")
	accessLevel := flag.String("access-level", "", "access level id")
	currency := flag.String("currency", "PHP", "wallet currency")
	name := flag.String("name", "", "display name")
	expiry := flag.Duration("expiry", 0, "token lifetime, JWT_ACCESS_TOKEN_EXPIRY when zero")
	flag.Parse()

	if *userID == "" {
		flag.Usage()
		log.Fatal("-user is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lifetime := cfg.JWT.AccessTokenExpiry
	if *expiry > 0 {
		lifetime = *expiry
	}

	service := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, lifetime)
	token, err := service.GenerateAccessToken(jwt.Identity{
		UserID:      *userID,
		Type:        *userType,
		AgencyID:    *agencyID,
		AccessLevel: *accessLevel,
		Currency:    *currency,
		Name:        *name,
	})
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}

	fmt.Println(token)
	log.Printf("expires at %s", time.Now().Add(lifetime).Format(time.RFC3339))
}
