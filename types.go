package authgate

import "context"

// UserRecord is the caller-owned view of a user the engine needs.
type UserRecord struct {
	UserID       string
	Email        string
	PasswordHash string
}

// UserProvider is the caller-supplied user backend.
//
// GetUserByEmail returns [ErrUserNotFound] (directly or wrapped) for
// unknown emails. UpdatePassword receives the plaintext new password;
// the provider hashes before persisting, so the engine never decides
// the at-rest format.
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	UpdatePassword(ctx context.Context, userID, newPassword string) error
}

// ChangePasswordOptions selects the ChangePassword authorization path.
// Exactly one of the fields must be set.
type ChangePasswordOptions struct {
	OldPassword string
	ResetToken  string
}
