// Package middleware exposes HTTP adapters for the authgate engine.
//
//   - [Authenticate] — resolves the Authorization bearer token and
//     attaches the user to the request context.
//   - [ThrottleOTP] — per-email request gate ahead of OTP generation.
//
// This package translates HTTP semantics into engine calls. It does not
// implement authentication logic itself; all decisions are delegated to
// the engine and token validator.
package middleware
