package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/simple-portal/pkg/materials"
	"github.com/tendant/simple-portal/pkg/materials/auth"
	"github.com/tendant/simple-portal/pkg/materials/config"
	"golang.org/x/crypto/bcrypt"
)

const usage = `Materials Portal user provisioning

USAGE:
  create-user -username=<name> -password=<password> -role=<teacher|student>
  create-user -users="name:role:password,name:role:password"
  create-user -hash -password=<password>

Users are stored in the postgres users table at DATABASE_URL, which is
created when missing. With -hash no database is needed: the bcrypt hash is
printed for use in the server's USERS variable.

ENVIRONMENT VARIABLES:
  DATABASE_URL      PostgreSQL connection string

  Configuration can be loaded from a .env file in the current directory.

OPTIONS:
`

type options struct {
	databaseURL string
	username    string
	password    string
	role        string
	users       string
	hashOnly    bool
}

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	var opts options
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	fs.StringVar(&opts.username, "username", "", "user name")
	fs.StringVar(&opts.password, "password", "", "password")
	fs.StringVar(&opts.role, "role", "student", "teacher or student (professor/aluno accepted)")
	fs.StringVar(&opts.users, "users", "", "comma separated name:role:password entries")
	fs.BoolVar(&opts.hashOnly, "hash", false, "print the bcrypt hash of -password and exit")
	fs.Parse(os.Args[1:])

	if err := run(opts); err != nil {
		slog.Error("create-user failed", "err", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	if opts.hashOnly {
		if opts.password == "" {
			return fmt.Errorf("-password is required with -hash")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(opts.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		fmt.Println(string(hash))
		return nil
	}

	entries, err := parseEntries(opts)
	if err != nil {
		return err
	}
	if opts.databaseURL == "" {
		return fmt.Errorf("DATABASE_URL or -database-url is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := config.NewDBPool(ctx, opts.databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	users := auth.NewPostgresWithPool(pool)
	if err := users.EnsureSchema(ctx); err != nil {
		return err
	}

	failed := 0
	for _, e := range entries {
		if err := users.CreateUser(ctx, e.username, e.password, e.role); err != nil {
			slog.Error("Failed to create user", "username", e.username, "err", err)
			failed++
			continue
		}
		slog.Info("User created", "username", e.username, "role", e.role)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d users failed", failed, len(entries))
	}
	return nil
}

type entry struct {
	username string
	password string
	role     materials.Role
}

// parseEntries collects users from -users, or the single user described by
// -username/-password/-role.
func parseEntries(opts options) ([]entry, error) {
	if opts.users == "" {
		if opts.username == "" || opts.password == "" {
			return nil, fmt.Errorf("-username and -password are required (or use -users)")
		}
		role, err := materials.ParseRole(opts.role)
		if err != nil {
			return nil, fmt.Errorf("invalid -role %q: %w", opts.role, err)
		}
		return []entry{{username: opts.username, password: opts.password, role: role}}, nil
	}

	var entries []entry
	for _, raw := range strings.Split(opts.users, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("malformed entry %q, want name:role:password", raw)
		}
		role, err := materials.ParseRole(parts[1])
		if err != nil {
			return nil, fmt.Errorf("user %q: %w", parts[0], err)
		}
		entries = append(entries, entry{username: parts[0], password: parts[2], role: role})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("-users contained no entries")
	}
	return entries, nil
}
