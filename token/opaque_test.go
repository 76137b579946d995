package token

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestOpaqueIssueAndValidate(t *testing.T) {
	_, client := testRedis(t)
	issuer := NewOpaqueIssuer(client, "", time.Hour)
	ctx := context.Background()

	tok, err := issuer.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if !strings.Contains(tok, ".") {
		t.Fatalf("token missing id/secret separator: %q", tok)
	}

	userID, err := issuer.Validate(ctx, tok)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("Validate returned user %q, want user-1", userID)
	}
}

func TestOpaqueValidateRejectsGarbage(t *testing.T) {
	_, client := testRedis(t)
	issuer := NewOpaqueIssuer(client, "", time.Hour)
	ctx := context.Background()

	for _, tok := range []string{
		"",
		"no-separator",
		"not-a-uuid.c2VjcmV0",
		"0f8fad5b-d9cb-469f-a165-70867728950e.short",
	} {
		if _, err := issuer.Validate(ctx, tok); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("Validate(%q) = %v, want ErrTokenInvalid", tok, err)
		}
	}
}

func TestOpaqueValidateRejectsTamperedSecret(t *testing.T) {
	_, client := testRedis(t)
	issuer := NewOpaqueIssuer(client, "", time.Hour)
	ctx := context.Background()

	tok, err := issuer.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// Keep the token ID, swap in a different 32-byte secret.
	id, _, _ := strings.Cut(tok, ".")
	forged := id + "." + strings.Repeat("A", 43)

	if _, err := issuer.Validate(ctx, forged); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Validate accepted forged secret: %v", err)
	}
}

func TestOpaqueMultipleLiveTokens(t *testing.T) {
	_, client := testRedis(t)
	issuer := NewOpaqueIssuer(client, "", time.Hour)
	ctx := context.Background()

	first, err := issuer.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	second, err := issuer.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	for _, tok := range []string{first, second} {
		if _, err := issuer.Validate(ctx, tok); err != nil {
			t.Fatalf("earlier token no longer valid: %v", err)
		}
	}
}

func TestOpaqueRevokeAll(t *testing.T) {
	_, client := testRedis(t)
	issuer := NewOpaqueIssuer(client, "", time.Hour)
	ctx := context.Background()

	first, _ := issuer.Issue(ctx, "user-1")
	second, _ := issuer.Issue(ctx, "user-1")
	other, _ := issuer.Issue(ctx, "user-2")

	if err := issuer.RevokeAll(ctx, "user-1"); err != nil {
		t.Fatalf("RevokeAll failed: %v", err)
	}

	for _, tok := range []string{first, second} {
		if _, err := issuer.Validate(ctx, tok); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("revoked token still valid: %v", err)
		}
	}
	if _, err := issuer.Validate(ctx, other); err != nil {
		t.Fatalf("unrelated user's token revoked: %v", err)
	}
}

func TestOpaqueTokenExpires(t *testing.T) {
	mr, client := testRedis(t)
	issuer := NewOpaqueIssuer(client, "", time.Minute)
	ctx := context.Background()

	tok, err := issuer.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := issuer.Validate(ctx, tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expired token still valid: %v", err)
	}
}
