// Package authgate is a user-authentication backend engine: credential
// login issuing bearer tokens, one-time-password generation and
// verification for login confirmation, password reset via cached token,
// and per-email throttling of OTP requests.
//
// The public surface is [Engine], constructed through [Builder]. All
// cross-request state lives in Redis; the user backend is supplied by
// the caller through [UserProvider]. cmd/authgated wires the engine
// into an HTTP service.
package authgate
