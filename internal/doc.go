// Package internal holds shared helpers that must never leak into the
// public authgate API: random credential generation and token hashing.
package internal
