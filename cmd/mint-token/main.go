package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ai_orchestrator/internal/auth"
	"ai_orchestrator/internal/config"
)

func main() {
	subject := flag.String("subject", "", "user id placed in the sub claim")
	roles := flag.String("roles", string(auth.RoleUser), "comma separated roles: admin, viewer, user")
	ttl := flag.Duration("ttl", auth.DefaultTokenTTL, "token lifetime")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to read .env: %v\n", err)
	}

	if strings.TrimSpace(*subject) == "" {
		fmt.Fprintln(os.Stderr, "ERROR: -subject is required")
		os.Exit(1)
	}

	parsed, ok := auth.ParseRoles(splitList(*roles))
	if !ok {
		fmt.Fprintf(os.Stderr, "ERROR: Invalid roles: %s\n", *roles)
		os.Exit(1)
	}

	// only the signing secret is needed; the full config would demand a database
	cfg := &config.Config{JWTSecret: config.JWTSecret()}

	token, expiresAt, err := auth.GenerateJWT(strings.TrimSpace(*subject), parsed, *ttl, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Token for %s expires %s\n", *subject, time.Unix(expiresAt, 0).UTC().Format(time.RFC3339))
	fmt.Println(token)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
