package password

import (
	"strings"
	"testing"
)

func testHasher(t *testing.T) *Argon2 {
	t.Helper()

	// Low-cost parameters to keep tests fast; still above package floors.
	hasher, err := NewArgon2(Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return hasher
}

func TestHashAndVerifyRoundTrip(t *testing.T) {
	hasher := testHasher(t)

	encoded, err := hasher.Hash("correct-horse")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("hash not in PHC format: %q", encoded)
	}

	ok, err := hasher.Verify("correct-horse", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("correct password did not verify")
	}

	ok, err = hasher.Verify("wrong-horse!", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Fatal("wrong password verified")
	}
}

func TestHashesAreSalted(t *testing.T) {
	hasher := testHasher(t)

	first, err := hasher.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	second, err := hasher.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if first == second {
		t.Fatal("two hashes of the same password are identical")
	}
}

func TestShortPasswordRejected(t *testing.T) {
	hasher := testHasher(t)

	if _, err := hasher.Hash("short"); err == nil {
		t.Fatal("expected error for password below minimum length")
	}
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	hasher := testHasher(t)

	cases := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"not phc", "plaintext"},
		{"wrong algorithm", "$bcrypt$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA"},
		{"missing params", "$argon2id$v=19$$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := hasher.Verify("whatever-pass", tc.encoded); err == nil {
				t.Fatalf("Verify accepted malformed hash %q", tc.encoded)
			}
		})
	}
}

func TestConfigFloors(t *testing.T) {
	bad := []Config{
		{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16},
		{Memory: 8 * 1024, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 16},
		{Memory: 8 * 1024, Time: 1, Parallelism: 0, SaltLength: 16, KeyLength: 16},
		{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16},
		{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8},
	}

	for _, cfg := range bad {
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("NewArgon2 accepted config below floor: %+v", cfg)
		}
	}
}
