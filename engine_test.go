package authgate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mwillfox/authgate/password"
)

type mockUserProvider struct {
	mu      sync.Mutex
	users   map[string]UserRecord // keyed by email
	hasher  *password.Argon2
	lookErr error
	updErr  error

	getCalls    int
	updateCalls int
}

func newMockUserProvider(t *testing.T) *mockUserProvider {
	t.Helper()

	hasher, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	return &mockUserProvider{
		users:  make(map[string]UserRecord),
		hasher: hasher,
	}
}

func (m *mockUserProvider) addUser(t *testing.T, userID, email, pass string) {
	t.Helper()

	hash, err := m.hasher.Hash(pass)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[email] = UserRecord{
		UserID:       userID,
		Email:        email,
		PasswordHash: hash,
	}
}

func (m *mockUserProvider) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getCalls++
	if m.lookErr != nil {
		return UserRecord{}, m.lookErr
	}

	user, ok := m.users[email]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserProvider) UpdatePassword(_ context.Context, userID, newPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updateCalls++
	if m.updErr != nil {
		return m.updErr
	}

	for email, user := range m.users {
		if user.UserID != userID {
			continue
		}
		hash, err := m.hasher.Hash(newPassword)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
		m.users[email] = user
		return nil
	}
	return errors.New("not found")
}

func (m *mockUserProvider) passwordMatches(email, pass string) bool {
	m.mu.Lock()
	user, ok := m.users[email]
	m.mu.Unlock()
	if !ok {
		return false
	}

	match, err := m.hasher.Verify(pass, user.PasswordHash)
	return err == nil && match
}

type testEngine struct {
	engine   *Engine
	provider *mockUserProvider
	redis    *miniredis.Miniredis
}

func newTestEngine(t *testing.T, mutate ...func(*Config)) *testEngine {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	provider := newMockUserProvider(t)

	cfg := defaultConfig()
	cfg.Password = PasswordConfig{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
	for _, f := range mutate {
		f(&cfg)
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserProvider(provider).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{
		engine:   engine,
		provider: provider,
		redis:    mr,
	}
}

// setNow pins the engine clock; miniredis TTLs advance separately via
// FastForward.
func (te *testEngine) setNow(now time.Time) {
	te.engine.now = func() time.Time { return now }
}
