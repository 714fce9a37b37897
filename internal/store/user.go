package store

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"examtrainer/internal/model"

	"golang.org/x/crypto/pbkdf2"
)

// ErrDuplicateUsername is returned by CreateUser when the username is
// already taken.
var ErrDuplicateUsername = errors.New("username already exists")

const (
	pbkdf2Iterations = 100_000
	pbkdf2KeyLen     = 32
	saltBytes        = 16
)

func newSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// hashPassword computes the hash for the given scheme and salt. The
// legacy sha256 schemes are kept verify-only for records created under
// older versions of the schema; new records always use pbkdf2.
func hashPassword(scheme model.HashScheme, password, salt string) string {
	switch scheme {
	case model.SchemePBKDF2:
		key := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
		return hex.EncodeToString(key)
	case model.SchemeSHA256Salt:
		sum := sha256.Sum256([]byte(password + salt))
		return hex.EncodeToString(sum[:])
	default:
		sum := sha256.Sum256([]byte(password))
		return hex.EncodeToString(sum[:])
	}
}

// CreateUser registers a new user with a fresh random salt under the
// current hash scheme. A taken username yields ErrDuplicateUsername.
func (s *Store) CreateUser(username, password string, level model.Level) (int64, error) {
	username = strings.TrimSpace(username)
	salt, err := newSalt()
	if err != nil {
		return 0, fmt.Errorf("generate salt: %w", err)
	}
	hash := hashPassword(model.SchemePBKDF2, password, salt)

	res, err := s.db.Exec(
		`INSERT INTO users (username, password, salt, scheme, level) VALUES (?, ?, ?, ?, ?)`,
		username, hash, salt, model.SchemePBKDF2, level,
	)
	if err != nil {
		if strings.Contains(strings.ToUpper(err.Error()), "UNIQUE") {
			return 0, ErrDuplicateUsername
		}
		slog.Error("failed to create user", "username", username, "error", err)
		return 0, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("created user", "id", id, "username", username, "level", level)
	return id, nil
}

const userColumns = `id, username, password, salt, scheme, level`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Salt, &u.Scheme, &u.Level)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// Records created before the scheme column existed carry an empty
	// scheme; the presence of a salt decides which legacy path applies.
	if u.Scheme == "" {
		if u.Salt != "" {
			u.Scheme = model.SchemeSHA256Salt
		} else {
			u.Scheme = model.SchemeSHA256
		}
	}
	return &u, nil
}

// GetUserByUsername returns a user by username, or nil when absent.
func (s *Store) GetUserByUsername(username string) (*model.User, error) {
	return scanUser(s.db.QueryRow(
		`SELECT `+userColumns+` FROM users WHERE username = ?`, strings.TrimSpace(username),
	))
}

// GetUserByID returns a user by ID, or nil when absent.
func (s *Store) GetUserByID(id int64) (*model.User, error) {
	return scanUser(s.db.QueryRow(
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
}

// AuthenticateUser verifies the password against the stored credential,
// recomputing the hash under the record's own scheme. Records created
// under the legacy unsalted scheme still verify. Returns nil when the
// combination does not match.
func (s *Store) AuthenticateUser(username, password string) (*model.User, error) {
	u, err := s.GetUserByUsername(username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, nil
	}
	hash := hashPassword(u.Scheme, password, u.Salt)
	if subtle.ConstantTimeCompare([]byte(hash), []byte(u.PasswordHash)) != 1 {
		return nil, nil
	}
	return u, nil
}

// UserCount returns the total number of users.
func (s *Store) UserCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
