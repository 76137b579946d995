package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestOTPStore(t *testing.T) (*OTPStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewOTPStore(rdb, "agotp"), mr
}

func TestConsumeSucceedsOnceThenNotFound(t *testing.T) {
	store, _ := newTestOTPStore(t)
	ctx := context.Background()
	now := time.Now()

	record := &OTPRecord{Code: "123456", ExpiresAt: now.Add(5 * time.Minute).Unix()}
	if err := store.Save(ctx, "a@x.com", record, now); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Consume(ctx, "a@x.com", "123456", now)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if got.Code != "123456" {
		t.Fatalf("Consume returned code %q, want %q", got.Code, "123456")
	}

	// The record was spent by the first call, success or not.
	if _, err := store.Consume(ctx, "a@x.com", "123456", now); !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("second Consume = %v, want ErrOTPNotFound", err)
	}
}

func TestConsumeMismatchSpendsRecord(t *testing.T) {
	store, _ := newTestOTPStore(t)
	ctx := context.Background()
	now := time.Now()

	record := &OTPRecord{Code: "123456", ExpiresAt: now.Add(5 * time.Minute).Unix()}
	if err := store.Save(ctx, "a@x.com", record, now); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := store.Consume(ctx, "a@x.com", "654321", now); !errors.Is(err, ErrOTPMismatch) {
		t.Fatalf("Consume with wrong code = %v, want ErrOTPMismatch", err)
	}

	// A wrong guess invalidates the code; the right one no longer works.
	if _, err := store.Consume(ctx, "a@x.com", "123456", now); !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("Consume after mismatch = %v, want ErrOTPNotFound", err)
	}
}

func TestConsumeExpiredRecord(t *testing.T) {
	store, _ := newTestOTPStore(t)
	ctx := context.Background()
	now := time.Now()

	record := &OTPRecord{Code: "123456", ExpiresAt: now.Add(2 * time.Minute).Unix()}
	if err := store.Save(ctx, "a@x.com", record, now); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	late := now.Add(3 * time.Minute)
	if _, err := store.Consume(ctx, "a@x.com", "123456", late); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("Consume past expiry = %v, want ErrOTPExpired", err)
	}

	// Expiry detection also spends the record.
	if _, err := store.Consume(ctx, "a@x.com", "123456", late); !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("Consume after expiry = %v, want ErrOTPNotFound", err)
	}
}

func TestSaveReplacesPriorRecord(t *testing.T) {
	store, _ := newTestOTPStore(t)
	ctx := context.Background()
	now := time.Now()

	first := &OTPRecord{Code: "111111", ExpiresAt: now.Add(5 * time.Minute).Unix()}
	if err := store.Save(ctx, "a@x.com", first, now); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}

	second := &OTPRecord{Code: "222222", ExpiresAt: now.Add(5 * time.Minute).Unix()}
	if err := store.Save(ctx, "a@x.com", second, now); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	if _, err := store.Consume(ctx, "a@x.com", "111111", now); !errors.Is(err, ErrOTPMismatch) {
		t.Fatalf("old code after replace = %v, want ErrOTPMismatch", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, _ := newTestOTPStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.Delete(ctx, "a@x.com"); err != nil {
		t.Fatalf("Delete on absent record failed: %v", err)
	}

	record := &OTPRecord{Code: "123456", ExpiresAt: now.Add(5 * time.Minute).Unix()}
	if err := store.Save(ctx, "a@x.com", record, now); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Delete(ctx, "a@x.com"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "a@x.com"); err != nil {
		t.Fatalf("repeated Delete failed: %v", err)
	}

	if _, err := store.Get(ctx, "a@x.com"); !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("Get after Delete = %v, want ErrOTPNotFound", err)
	}
}

func TestRecordCodecRoundTrip(t *testing.T) {
	record := &OTPRecord{Code: "048215", ExpiresAt: time.Now().Add(time.Minute).Unix()}

	encoded, err := encodeOTPRecord(record)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, err := decodeOTPRecord(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Code != record.Code || decoded.ExpiresAt != record.ExpiresAt {
		t.Fatalf("round trip mismatch: %+v != %+v", decoded, record)
	}
}

func TestRecordSurvivesLogicalExpiry(t *testing.T) {
	store, mr := newTestOTPStore(t)
	ctx := context.Background()
	now := time.Now()

	record := &OTPRecord{Code: "123456", ExpiresAt: now.Add(2 * time.Minute).Unix()}
	if err := store.Save(ctx, "a@x.com", record, now); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Within the grace window past logical expiry the record is still
	// present, so a late verify reports expired rather than not-found.
	mr.FastForward(3 * time.Minute)

	if _, err := store.Consume(ctx, "a@x.com", "123456", now.Add(3*time.Minute)); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("Consume in grace window = %v, want ErrOTPExpired", err)
	}
}
