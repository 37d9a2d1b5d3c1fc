package authtoken

import (
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"
)

// tokenWith builds a three-segment token whose payload is the given
// JSON, base64url-encoded without padding.
func tokenWith(payload string) string {
	return fmt.Sprintf("hdr.%s.sig", base64.RawURLEncoding.EncodeToString([]byte(payload)))
}

func TestParse_Valid(t *testing.T) {
	// Padded standard base64, as issued by the backend.
	raw := "abc.eyJ0Z1VzZXJJZCI6MSwiZXhwIjo5OTk5OTk5OTk5fQ==.sig"

	tok, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if tok.UserID != 1 {
		t.Errorf("UserID = %d, want 1", tok.UserID)
	}
	if tok.Expiry.Unix() != 9999999999 {
		t.Errorf("Expiry = %v, want unix 9999999999", tok.Expiry)
	}
	if err := tok.Valid(time.Now()); err != nil {
		t.Errorf("Valid() = %v, want nil", err)
	}
}

func TestParse_NonObjectPayload(t *testing.T) {
	// Payload "foo" decodes, but is not a JSON object.
	_, err := Parse("abc.Zm9v.sig")
	if !errors.Is(err, ErrPayload) {
		t.Errorf("Parse error = %v, want ErrPayload", err)
	}
}

func TestParse_SegmentCount(t *testing.T) {
	tests := []string{
		"",
		"onlyone",
		"two.segments",
		"four.whole.dot.segments",
	}
	for _, raw := range tests {
		if _, err := Parse(raw); !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q) error = %v, want ErrMalformed", raw, err)
		}
	}
}

func TestParse_MissingSubject(t *testing.T) {
	_, err := Parse(tokenWith(`{"exp": 9999999999}`))
	if !errors.Is(err, ErrNoSubject) {
		t.Errorf("Parse error = %v, want ErrNoSubject", err)
	}
}

func TestValid_Expired(t *testing.T) {
	tok, err := Parse(tokenWith(`{"tgUserId": 42, "exp": 1000}`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if err := tok.Valid(time.Now()); !errors.Is(err, ErrExpired) {
		t.Errorf("Valid() = %v, want ErrExpired", err)
	}
}

func TestValid_ExpiryBoundary(t *testing.T) {
	now := time.Unix(5000, 0)
	tok, err := Parse(tokenWith(`{"tgUserId": 42, "exp": 5000}`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	// Expiry must be strictly greater than now.
	if err := tok.Valid(now); !errors.Is(err, ErrExpired) {
		t.Errorf("Valid() at exp instant = %v, want ErrExpired", err)
	}
	if err := tok.Valid(now.Add(-time.Second)); err != nil {
		t.Errorf("Valid() before exp = %v, want nil", err)
	}
}

func TestValid_NoExpiry(t *testing.T) {
	tok, err := Parse(tokenWith(`{"tgUserId": 42}`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if err := tok.Valid(time.Now().Add(100 * 365 * 24 * time.Hour)); err != nil {
		t.Errorf("Valid() with no exp claim = %v, want nil", err)
	}
}

func TestParse_GarbagePayloadEncoding(t *testing.T) {
	_, err := Parse("abc.!!!not-base64!!!.sig")
	if !errors.Is(err, ErrPayload) {
		t.Errorf("Parse error = %v, want ErrPayload", err)
	}
}
