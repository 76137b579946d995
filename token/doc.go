// Package token issues and revokes bearer tokens for authenticated users.
//
// Two issuers are provided: [OpaqueIssuer] stores a hash of each random
// token in Redis and resolves tokens by lookup; [JWTIssuer] signs HS256
// tokens and tracks live token IDs in Redis so revocation works despite
// the tokens being self-contained. A user may hold any number of live
// tokens; RevokeAll drops them all at once.
package token
