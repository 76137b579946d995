// Package stores implements the Redis-backed keyed stores for ephemeral
// credentials: the per-user one-time password record and the per-email
// password-reset token.
//
// Both stores hold at most one live record per key; a save replaces any
// prior record, which is what gives "only the latest is valid" semantics
// without accumulating history.
package stores
