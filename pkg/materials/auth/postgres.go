package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-portal/pkg/materials"
	"golang.org/x/crypto/bcrypt"
)

// DBTX is satisfied by a pool, a single connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL
)`

// Postgres authenticates against the users table
type Postgres struct {
	db DBTX
}

// NewPostgres creates a postgres-backed authenticator
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

// NewPostgresWithPool creates a postgres-backed authenticator over a pool
func NewPostgresWithPool(pool *pgxpool.Pool) *Postgres {
	return &Postgres{db: pool}
}

// EnsureSchema creates the users table when it does not exist
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return handlePostgresError("ensure schema", err)
	}
	return nil
}

func (p *Postgres) Authenticate(ctx context.Context, username, password string) (materials.Role, error) {
	var hash, roleLabel string
	err := p.db.QueryRow(ctx,
		`SELECT password_hash, role FROM users WHERE username = $1`, username,
	).Scan(&hash, &roleLabel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", rejectUnknownUser(password)
		}
		return "", handlePostgresError("authenticate", err)
	}
	if compareHash([]byte(hash), []byte(password)) != nil {
		return "", materials.ErrInvalidCredentials
	}
	role, err := materials.ParseRole(roleLabel)
	if err != nil {
		return "", fmt.Errorf("user %q has role %q: %w", username, roleLabel, err)
	}
	return role, nil
}

// CreateUser hashes password and inserts the user, replacing the password
// and role of an existing user with the same name.
func (p *Postgres) CreateUser(ctx context.Context, username, password string, role materials.Role) error {
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}
	if _, err := materials.ParseRole(string(role)); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	_, err = p.db.Exec(ctx, `
		INSERT INTO users (username, password_hash, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE
		SET password_hash = EXCLUDED.password_hash, role = EXCLUDED.role`,
		username, string(hash), string(role),
	)
	if err != nil {
		return handlePostgresError("create user", err)
	}
	return nil
}

func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("users table does not exist - run create-user with -migrate")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}
