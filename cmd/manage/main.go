package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/angelmondragon/kartupintar-backend/internal/users"
	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/db"
	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	"github.com/angelmondragon/kartupintar-backend/pkg/types"
)

const passwordEnv = "KARTUPINTAR_MANAGE_PASSWORD"

func usage() {
	fmt.Fprintln(os.Stderr, "usage: manage create-user -username <u> -name <n> [-role admin|canteen_operator|user] [-email e] [-member-id uuid]")
	fmt.Fprintf(os.Stderr, "the password is read from -password or %s\n", passwordEnv)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "create-user":
		if err := createUser(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "create-user failed: %s\n", describe(err))
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func createUser(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	username := fs.String("username", "", "login name")
	name := fs.String("name", "", "display name")
	role := fs.String("role", string(enums.UserRoleAdmin), "admin|canteen_operator|user")
	password := fs.String("password", "", "password (prefer the env var)")
	email := fs.String("email", "", "optional email")
	memberID := fs.String("member-id", "", "optional member to link")
	if err := fs.Parse(args); err != nil {
		return err
	}

	input, err := buildInput(*username, *name, *role, *password, *email, *memberID)
	if err != nil {
		return err
	}

	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "manage"})
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "manage",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer dbClient.Close()

	svc, err := users.NewService(users.NewRepository(dbClient.DB()), cfg.Password, logg)
	if err != nil {
		return err
	}

	user, err := svc.Create(ctx, types.SystemCaller(), input)
	if err != nil {
		return err
	}
	fmt.Printf("created %s %q (%s)\n", user.Role, user.Username, user.ID)
	return nil
}

func buildInput(username, name, role, password, email, memberID string) (users.CreateInput, error) {
	if password == "" {
		password = os.Getenv(passwordEnv)
	}
	parsedRole, err := enums.ParseUserRole(role)
	if err != nil {
		return users.CreateInput{}, err
	}
	input := users.CreateInput{
		Username: strings.TrimSpace(username),
		Password: password,
		Name:     strings.TrimSpace(name),
		Role:     parsedRole,
	}
	if e := strings.TrimSpace(email); e != "" {
		input.Email = &e
	}
	if memberID != "" {
		id, err := uuid.Parse(memberID)
		if err != nil {
			return users.CreateInput{}, fmt.Errorf("invalid -member-id: %w", err)
		}
		input.MemberID = &id
	}
	return input, nil
}

func describe(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}
