package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/happypaws/dogwalk-backend/internal/config"
	"github.com/happypaws/dogwalk-backend/internal/database"
	"github.com/happypaws/dogwalk-backend/internal/models"
	"github.com/happypaws/dogwalk-backend/pkg/jwt"
)

func main() {
	userID := flag.String("user", "", "user id to sign the token for (random when empty)")
	email := flag.String("email", "", "look the user up by email; id and role come from the users table")
	role := flag.String("role", models.RoleUser, "role claim: user or admin")
	newSecret := flag.Bool("generate-secret", false, "print a fresh JWT_SECRET and exit")
	flag.Parse()

	if *newSecret {
		secret, err := generateSecret(32)
		if err != nil {
			log.Fatalf("Failed to generate secret: %v", err)
		}
		fmt.Printf("JWT_SECRET=%s\n", secret)
		return
	}

	if *role != models.RoleUser && *role != models.RoleAdmin {
		log.Fatalf("Unknown role %q", *role)
	}

	id := uuid.New()
	if *userID != "" {
		parsed, err := uuid.Parse(*userID)
		if err != nil {
			log.Fatalf("Invalid user id: %v", err)
		}
		id = parsed
	}

	if *email != "" {
		user, err := lookupUser(*email)
		if err != nil {
			log.Fatalf("Failed to look up user: %v", err)
		}
		id, *role = user.ID, user.Role
	}

	cfg, err := config.LoadJWT()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	tokens := jwt.NewService(cfg.Secret, cfg.Issuer, cfg.AccessTokenExpiry)
	token, err := tokens.GenerateAccessToken(id, *email, *role)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	expiresAt, err := tokens.GetTokenExpiry(token)
	if err != nil {
		log.Fatalf("Failed to read token expiry: %v", err)
	}

	fmt.Printf("user_id: %s\nrole:    %s\nexpires: %s\n\n%s\n", id, *role, expiresAt.Format(time.RFC3339), token)
}

func lookupUser(email string) (*models.User, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, err := database.NewUserRepository(db).GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("no user with email %s", email)
	}
	return user, nil
}

func generateSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
