// cmd/tools/seed-question-bank/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"ipo-readiness/internal/common/config"
	"ipo-readiness/internal/common/database"
	"ipo-readiness/internal/models"
	"ipo-readiness/internal/store/postgres"
	"ipo-readiness/pkg/questionbank"
)

func main() {
	bankPath := flag.String("bank", "", "Question bank JSON (defaults to the bundled bank)")
	usersPath := flag.String("users", "", "Optional JSON array of assessor/reviewer accounts to upsert")
	dryRun := flag.Bool("dry-run", false, "Validate inputs without touching the database")
	flag.Parse()

	bank, err := loadBank(*bankPath)
	if err != nil {
		fail("load question bank", err)
	}
	fmt.Printf("Question bank %s: %d questions\n", bank.Version, len(bank.Questions))

	var users []*models.User
	if *usersPath != "" {
		if users, err = loadUsers(*usersPath); err != nil {
			fail("load users", err)
		}
		fmt.Printf("Users file: %d accounts\n", len(users))
	}
	if *dryRun {
		fmt.Println("Dry run, nothing written.")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fail("load config", err)
	}
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		fail("connect postgres", err)
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := pg.Migrate(ctx, postgres.Schema); err != nil {
		fail("migrate schema", err)
	}
	st := postgres.New(pg.DB)

	if err := bank.Seed(ctx, st.Questions()); err != nil {
		fail("seed question bank", err)
	}
	fmt.Printf("Seeded %d question templates.\n", len(bank.Questions))

	for _, u := range users {
		if err := st.Users().Upsert(ctx, u); err != nil {
			fail("upsert user "+u.Email, err)
		}
	}
	if len(users) > 0 {
		fmt.Printf("Upserted %d users.\n", len(users))
	}
}

func loadBank(path string) (*questionbank.Bank, error) {
	if path == "" {
		return questionbank.Default(), nil
	}
	return questionbank.Load(path)
}

func loadUsers(path string) ([]*models.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var users []*models.User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("parse users: %w", err)
	}
	now := time.Now().UTC()
	for i, u := range users {
		u.Email = strings.ToLower(strings.TrimSpace(u.Email))
		u.Role = models.Role(strings.ToUpper(string(u.Role)))
		if u.ID == "" || u.Email == "" {
			return nil, fmt.Errorf("user %d: id and email are required", i)
		}
		if !u.Role.Valid() {
			return nil, fmt.Errorf("user %s: unknown role %q", u.ID, u.Role)
		}
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		u.UpdatedAt = now
	}
	return users, nil
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", step, err)
	os.Exit(1)
}
