package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	otpRecordVersionV1 = 1

	// Records outlive their logical expiry by this much so a late verify
	// reports "expired" instead of "not found".
	otpExpiryGrace = 10 * time.Minute
)

var (
	ErrOTPNotFound         = errors.New("otp record not found")
	ErrOTPExpired          = errors.New("otp record expired")
	ErrOTPMismatch         = errors.New("otp code mismatch")
	ErrOTPRedisUnavailable = errors.New("otp redis unavailable")
)

// consumeOTPLua atomically performs GET→DEL→validate on an OTP record.
// The record is removed before validation so every outcome (expired,
// mismatch, success) spends the code: a wrong guess is not retryable and
// two racing verifies cannot both observe the same live code.
//
// KEYS[1] = record key
// ARGV[1] = supplied code
// ARGV[2] = current unix timestamp (int string)
//
// Returns record bytes on success, or an error string:
// "not_found", "expired", "mismatch".
var consumeOTPLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end

redis.call('DEL', KEYS[1])

local nowUnix = tonumber(ARGV[2])

-- Binary layout: version(1) expiresAt(8 big-endian) codeLen(2 big-endian) code
local version = string.byte(data, 1)
if version ~= 1 then
  return {err='not_found'}
end

local e0,e1,e2,e3,e4,e5,e6,e7 = string.byte(data, 2, 9)
local expiresAt = e0
for _, b in ipairs({e1,e2,e3,e4,e5,e6,e7}) do
  expiresAt = expiresAt * 256 + b
end

if nowUnix > expiresAt then
  return {err='expired'}
end

local codeLen = string.byte(data, 10) * 256 + string.byte(data, 11)
local code = string.sub(data, 12, 11 + codeLen)
if code ~= ARGV[1] then
  return {err='mismatch'}
end

return data
`)

// OTPRecord is the stored one-time password for a single user.
type OTPRecord struct {
	Code      string
	ExpiresAt int64
}

// OTPStore keeps at most one live OTP per email. Save replaces any prior
// record; Consume removes the record no matter how verification turns out.
type OTPStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewOTPStore(redisClient redis.UniversalClient, prefix string) *OTPStore {
	if prefix == "" {
		prefix = "agotp"
	}
	return &OTPStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *OTPStore) key(email string) string {
	return s.prefix + ":" + email
}

// Save persists record for email, replacing any existing OTP. The Redis TTL
// runs past the logical expiry by a grace window; Consume checks ExpiresAt.
func (s *OTPStore) Save(ctx context.Context, email string, record *OTPRecord, now time.Time) error {
	encoded, err := encodeOTPRecord(record)
	if err != nil {
		return err
	}

	ttl := time.Unix(record.ExpiresAt, 0).Sub(now) + otpExpiryGrace
	if ttl <= 0 {
		return errors.New("otp record already expired")
	}

	if err := s.redis.Set(ctx, s.key(email), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}

	return nil
}

// Get returns the live record for email without consuming it.
func (s *OTPStore) Get(ctx context.Context, email string) (*OTPRecord, error) {
	data, err := s.redis.Get(ctx, s.key(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrOTPNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}

	return decodeOTPRecord(data)
}

// Consume validates code against the stored record for email and removes
// the record in the same atomic step. It fails with [ErrOTPNotFound],
// [ErrOTPExpired], or [ErrOTPMismatch]; in every one of those cases the
// record is already gone.
func (s *OTPStore) Consume(ctx context.Context, email, code string, now time.Time) (*OTPRecord, error) {
	result, err := consumeOTPLua.Run(ctx, s.redis,
		[]string{s.key(email)},
		code,
		now.Unix(),
	).Result()

	if err != nil {
		switch err.Error() {
		case "not_found":
			return nil, ErrOTPNotFound
		case "expired":
			return nil, ErrOTPExpired
		case "mismatch":
			return nil, ErrOTPMismatch
		default:
			return nil, fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
		}
	}

	data, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected lua result type", ErrOTPRedisUnavailable)
	}

	record, decErr := decodeOTPRecord([]byte(data))
	if decErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, decErr)
	}

	// Defense-in-depth: Lua string comparison is not constant-time.
	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) != 1 {
		return nil, ErrOTPMismatch
	}

	return record, nil
}

// Delete removes the stored OTP for email. No-op when absent.
func (s *OTPStore) Delete(ctx context.Context, email string) error {
	if err := s.redis.Del(ctx, s.key(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}
	return nil
}

func encodeOTPRecord(record *OTPRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(otpRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.Code) > 65535 {
		return nil, errors.New("otp code too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Code))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Code)

	return buf.Bytes(), nil
}

func decodeOTPRecord(data []byte) (*OTPRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != otpRecordVersionV1 {
		return nil, errors.New("invalid otp record version")
	}

	record := &OTPRecord{}

	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var codeLen uint16
	if err := binary.Read(reader, binary.BigEndian, &codeLen); err != nil {
		return nil, err
	}

	code := make([]byte, codeLen)
	if _, err := io.ReadFull(reader, code); err != nil {
		return nil, err
	}
	record.Code = string(code)

	return record, nil
}
