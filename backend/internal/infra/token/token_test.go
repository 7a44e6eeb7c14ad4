package token

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "iqupdate/backend/internal/domain/user"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestJWTManagerIssueAndParse(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	session, err := m.Issue(&domain.User{ID: 7, Email: "release@example.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Parse(session.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 7 || claims.TokenID != session.ID || claims.Email != "release@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.ExpiresAt.Unix() != session.ExpiresAt.Unix() {
		t.Fatalf("expiry mismatch %s vs %s", claims.ExpiresAt, session.ExpiresAt)
	}
}

func TestJWTManagerRejectsForeignAndExpired(t *testing.T) {
	issuer := NewJWTManager("secret-a", time.Hour)
	session, err := issuer.Issue(&domain.User{ID: 1})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other := NewJWTManager("secret-b", time.Hour)
	if _, err := other.Parse(session.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}

	expired := NewJWTManager("secret-a", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue(&domain.User{ID: 1})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Parse(old.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}

	if _, err := issuer.Parse("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

type sessionStore interface {
	Save(ctx context.Context, userID uint, tokenID string, expiresAt time.Time) error
	Delete(ctx context.Context, userID uint, tokenID string) error
	Exists(ctx context.Context, userID uint, tokenID string) (bool, error)
}

func exerciseStore(t *testing.T, store sessionStore) {
	t.Helper()
	ctx := context.Background()

	if err := store.Save(ctx, 1, "abc", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("save: %v", err)
	}
	ok, err := store.Exists(ctx, 1, "abc")
	if err != nil || !ok {
		t.Fatalf("expected session to exist, ok=%v err=%v", ok, err)
	}
	if ok, _ := store.Exists(ctx, 2, "abc"); ok {
		t.Fatalf("session must be scoped to its user")
	}
	if err := store.Delete(ctx, 1, "abc"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := store.Exists(ctx, 1, "abc"); ok {
		t.Fatalf("expected session removed")
	}
	if err := store.Save(ctx, 1, "", time.Now()); err == nil {
		t.Fatalf("expected error for empty token id")
	}
}

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	exerciseStore(t, store)

	ctx := context.Background()
	if err := store.Save(ctx, 3, "old", time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ok, _ := store.Exists(ctx, 3, "old"); ok {
		t.Fatalf("expired session should not exist")
	}
	if len(store.sessions) != 0 {
		t.Fatalf("expired bucket should be cleaned, got %d", len(store.sessions))
	}
}

func TestRedisSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisSessionStore(client, "")
	exerciseStore(t, store)

	ctx := context.Background()
	if err := store.Save(ctx, 5, "ttl", time.Now().Add(30*time.Second)); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(31 * time.Second)
	if ok, _ := store.Exists(ctx, 5, "ttl"); ok {
		t.Fatalf("session should expire with redis ttl")
	}
}
