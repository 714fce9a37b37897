package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"examtrainer/internal/model"
)

func TestCreateUserAndAuthenticate(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateUser("ana", "geheim123", model.LevelHavo)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if id == 0 {
		t.Fatal("expected nonzero user id")
	}

	u, err := s.AuthenticateUser("ana", "geheim123")
	if err != nil {
		t.Fatalf("AuthenticateUser: %v", err)
	}
	if u == nil {
		t.Fatal("expected successful login")
	}
	if u.Username != "ana" || u.Level != model.LevelHavo {
		t.Errorf("unexpected user %+v", u)
	}
	if u.Scheme != model.SchemePBKDF2 {
		t.Errorf("new users must get the current scheme, got %q", u.Scheme)
	}
	if u.Salt == "" {
		t.Error("new users must get a salt")
	}

	// Wrong password and unknown user both come back nil without error.
	u, err = s.AuthenticateUser("ana", "fout")
	if err != nil {
		t.Fatalf("AuthenticateUser wrong password: %v", err)
	}
	if u != nil {
		t.Error("wrong password must not authenticate")
	}
	u, err = s.AuthenticateUser("bestaatniet", "geheim123")
	if err != nil {
		t.Fatalf("AuthenticateUser unknown: %v", err)
	}
	if u != nil {
		t.Error("unknown user must not authenticate")
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.CreateUser("ana", "x", model.LevelMavo); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	_, err := s.CreateUser("ana", "y", model.LevelVwo)
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestSaltsDiffer(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.CreateUser("een", "zelfde", model.LevelHavo); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := s.CreateUser("twee", "zelfde", model.LevelHavo); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	a, _ := s.GetUserByUsername("een")
	b, _ := s.GetUserByUsername("twee")
	if a.Salt == b.Salt {
		t.Error("two users must not share a salt")
	}
	if a.PasswordHash == b.PasswordHash {
		t.Error("same password with different salts must hash differently")
	}
}

func TestAuthenticateLegacySaltedSHA256(t *testing.T) {
	s := newTestStore(t)

	salt := "abcdef0123456789"
	sum := sha256.Sum256([]byte("wachtwoord" + salt))
	if _, err := s.db.Exec(
		`INSERT INTO users (username, password, salt, scheme, level) VALUES (?, ?, ?, ?, ?)`,
		"legacy", hex.EncodeToString(sum[:]), salt, model.SchemeSHA256Salt, "vwo",
	); err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}

	u, err := s.AuthenticateUser("legacy", "wachtwoord")
	if err != nil {
		t.Fatalf("AuthenticateUser: %v", err)
	}
	if u == nil {
		t.Fatal("legacy salted sha256 credential must still verify")
	}
	if u, _ = s.AuthenticateUser("legacy", "verkeerd"); u != nil {
		t.Error("wrong password must not verify against legacy row")
	}
}

func TestAuthenticateLegacyUnsaltedSHA256(t *testing.T) {
	s := newTestStore(t)

	// Oldest rows: unsalted hash, no salt, no scheme marker at all.
	sum := sha256.Sum256([]byte("wachtwoord"))
	if _, err := s.db.Exec(
		`INSERT INTO users (username, password, level) VALUES (?, ?, ?)`,
		"oeroud", hex.EncodeToString(sum[:]), "mavo",
	); err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}

	u, err := s.AuthenticateUser("oeroud", "wachtwoord")
	if err != nil {
		t.Fatalf("AuthenticateUser: %v", err)
	}
	if u == nil {
		t.Fatal("legacy unsalted sha256 credential must still verify")
	}
	if u.Scheme != model.SchemeSHA256 {
		t.Errorf("expected scheme sha256, got %q", u.Scheme)
	}
}

func TestUserCount(t *testing.T) {
	s := newTestStore(t)

	count, err := s.UserCount()
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 users, got %d", count)
	}

	if _, err := s.CreateUser("ana", "x", model.LevelHavo); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := s.CreateUser("bob", "x", model.LevelVwo); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	count, err = s.UserCount()
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 users, got %d", count)
	}
}

func TestGetUserByID(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateUser("ana", "x", model.LevelHavo)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	u, err := s.GetUserByID(id)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if u == nil || u.Username != "ana" {
		t.Fatalf("unexpected user %+v", u)
	}
	u, err = s.GetUserByID(9999)
	if err != nil {
		t.Fatalf("GetUserByID missing: %v", err)
	}
	if u != nil {
		t.Error("expected nil for missing user")
	}
}
