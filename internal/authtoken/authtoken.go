// Package authtoken parses and validates the backend access token.
//
// The token is a compact three-segment structure (header.payload.signature)
// whose payload carries the Telegram user id the session acts as, plus
// an optional expiry. Courier never verifies the signature (that is
// the backend's job on connect) but it does check the payload shape
// and expiry locally before dialing, so an obviously dead token never
// causes a connection attempt.
package authtoken

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for token validation failures. All of them mean
// "re-authenticate"; no caller retries any of them.
var (
	// ErrMalformed means the token does not have exactly three
	// dot-separated segments.
	ErrMalformed = errors.New("token is not a three-segment compact structure")

	// ErrPayload means the middle segment did not decode into a JSON
	// object.
	ErrPayload = errors.New("token payload is not a valid object")

	// ErrNoSubject means the payload decoded but carries no user id.
	ErrNoSubject = errors.New("token payload has no subject user id")

	// ErrExpired means the token's expiry is not in the future.
	ErrExpired = errors.New("token is expired")
)

// Token is a parsed, structurally valid access token. Immutable.
type Token struct {
	// Raw is the original compact string, sent verbatim on connect.
	Raw string

	// UserID is the Telegram user id the token was issued for.
	UserID int64

	// Expiry is the token expiry instant, or the zero time when the
	// payload carries no exp claim.
	Expiry time.Time
}

// payload is the subset of the token payload Courier inspects.
type payload struct {
	TgUserID *int64   `json:"tgUserId"`
	Exp      *float64 `json:"exp"`
}

// Parse decodes a compact token string and validates its structure.
// It does not check expiry; see [Token.Valid].
func Parse(raw string) (*Token, error) {
	segments := strings.Split(raw, ".")
	if len(segments) != 3 {
		return nil, fmt.Errorf("%w (got %d segments)", ErrMalformed, len(segments))
	}

	decoded, err := decodeSegment(segments[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayload, err)
	}

	var p payload
	if err := json.Unmarshal(decoded, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayload, err)
	}
	if p.TgUserID == nil {
		return nil, ErrNoSubject
	}

	t := &Token{
		Raw:    raw,
		UserID: *p.TgUserID,
	}
	if p.Exp != nil {
		t.Expiry = time.Unix(int64(*p.Exp), 0)
	}
	return t, nil
}

// Valid reports whether the token is usable at the given instant.
// A token with no expiry claim is always valid; otherwise the expiry
// must be strictly in the future.
func (t *Token) Valid(now time.Time) error {
	if !t.Expiry.IsZero() && !t.Expiry.After(now) {
		return ErrExpired
	}
	return nil
}

// decodeSegment decodes a token segment, accepting both base64url and
// standard alphabets, padded or not. Issuers are inconsistent about
// padding, so all four variants are tried.
func decodeSegment(s string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.StdEncoding,
	}

	var lastErr error
	for _, enc := range encodings {
		decoded, err := enc.DecodeString(s)
		if err == nil {
			return decoded, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
