// Package sqlstore is a MySQL-backed implementation of
// authgate.UserProvider on database/sql. It owns the write-hashing
// contract: UpdatePassword and CreateUser receive plaintext and persist
// an argon2id hash.
package sqlstore
