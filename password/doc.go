// Package password provides argon2id hashing and verification in PHC
// string format. The user store write-hashes plaintext passwords with
// [Argon2.Hash] on save; the engine only ever compares with
// [Argon2.Verify].
package password
