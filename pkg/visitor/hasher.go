// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

// Package visitor derives pseudonymous visitor identifiers.
//
// An identifier is SHA-256(daySalt || ip || userAgent), where daySalt is an
// HMAC of the UTC calendar day under a server-held secret. The same client
// maps to one identifier for a whole day and to an unrelated one the next;
// neither the IP nor the user agent is recoverable from it.
package visitor

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/minio/sha256-simd"
)

// IDLength is the length of an ID in hex characters.
const IDLength = sha256.Size * 2

// dayLayout binds the salt to a UTC calendar day.
const dayLayout = "2006-01-02"

// ID is a 64-char lowercase hex visitor identifier.
type ID string

func (id ID) String() string { return string(id) }

// Valid reports whether id has the shape of a Hasher output.
func (id ID) Valid() bool {
	if len(id) != IDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Hasher is safe for concurrent use.
type Hasher struct {
	secret []byte
}

// NewHasher returns a Hasher keyed by secret.
func NewHasher(secret []byte) *Hasher {
	s := make([]byte, len(secret))
	copy(s, secret)
	return &Hasher{secret: s}
}

// NewRandomSecret returns a 32-byte secret for deployments that did not
// configure one. Identifiers then only stay stable for the process lifetime.
func NewRandomSecret() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("visitor: generate secret: %w", err)
	}
	return b, nil
}

// DaySalt returns the hex salt for the UTC calendar day containing at.
func DaySalt(secret []byte, at time.Time) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(at.UTC().Format(dayLayout)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Hash returns the identifier for (ip, userAgent) on the day of at.
// Inputs are hashed as given; there is no validation and no error path.
func (h *Hasher) Hash(ip, userAgent string, at time.Time) ID {
	hash := sha256.New()
	hash.Write([]byte(DaySalt(h.secret, at)))
	hash.Write([]byte(ip))
	hash.Write([]byte(userAgent))
	return ID(hex.EncodeToString(hash.Sum(nil)))
}
