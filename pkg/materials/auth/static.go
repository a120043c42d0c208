package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tendant/simple-portal/pkg/materials"
	"golang.org/x/crypto/bcrypt"
)

// User is a credential record.
type User struct {
	Username     string
	Role         materials.Role
	PasswordHash string
}

// Static authenticates against an in-memory table of bcrypt hashes.
type Static struct {
	users map[string]User
}

// NewStatic builds an authenticator over users. Duplicate usernames are an
// error.
func NewStatic(users []User) (*Static, error) {
	s := &Static{users: make(map[string]User, len(users))}
	for _, u := range users {
		if _, dup := s.users[u.Username]; dup {
			return nil, fmt.Errorf("duplicate user %q", u.Username)
		}
		s.users[u.Username] = u
	}
	return s, nil
}

// ParseUsers reads "name:role:secret" entries separated by commas. A secret
// that is not a bcrypt hash is treated as a plain password and hashed, which
// is meant for development setups only.
func ParseUsers(spec string) ([]User, error) {
	var users []User
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("malformed user entry %q, want name:role:secret", entry)
		}
		role, err := materials.ParseRole(parts[1])
		if err != nil {
			return nil, fmt.Errorf("user %q: %w", parts[0], err)
		}
		hash := parts[2]
		if !isBcryptHash(hash) {
			b, err := bcrypt.GenerateFromPassword([]byte(hash), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("user %q: failed to hash password: %w", parts[0], err)
			}
			hash = string(b)
		}
		users = append(users, User{Username: parts[0], Role: role, PasswordHash: hash})
	}
	return users, nil
}

func isBcryptHash(s string) bool {
	if _, err := bcrypt.Cost([]byte(s)); err != nil {
		return false
	}
	return true
}

// compareHash checks a password against a bcrypt hash.
var compareHash = bcrypt.CompareHashAndPassword

// missingUserHash is compared against when the username is unknown, so a
// failed lookup takes as long as a wrong password.
var missingUserHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("no such user"), bcrypt.DefaultCost)
	return h
})

func rejectUnknownUser(password string) error {
	compareHash(missingUserHash(), []byte(password)) //nolint:errcheck
	return materials.ErrInvalidCredentials
}

func (s *Static) Authenticate(ctx context.Context, username, password string) (materials.Role, error) {
	u, ok := s.users[username]
	if !ok {
		return "", rejectUnknownUser(password)
	}
	if compareHash([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", materials.ErrInvalidCredentials
	}
	return u.Role, nil
}
