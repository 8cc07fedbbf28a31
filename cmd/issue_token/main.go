package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/xelth-com/eckslot/internal/config"
	"github.com/xelth-com/eckslot/internal/utils"
)

// issue_token mints an operator JWT signed with the configured JWT_SECRET
func main() {
	id := flag.String("id", "", "operator id (required)")
	name := flag.String("name", "", "operator display name")
	role := flag.String("role", "operator", "operator role")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	token, err := utils.GenerateOperatorToken(*id, *name, *role, cfg.JWTSecret, *ttl)
	if err != nil {
		log.Fatalf("❌ Failed to issue token: %v", err)
	}
	fmt.Println(token)
}
