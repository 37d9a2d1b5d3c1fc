package tools

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ValidationError reports malformed or out-of-range tool arguments.
// Its message is written for the remote agent and is safe to return
// verbatim across the channel, unlike internal execution errors.
type ValidationError struct {
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// invalidf builds a ValidationError.
func invalidf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// usernameRe matches @usernames: 5-32 chars of [a-z0-9_], starting
// with a letter, case-insensitive.
var usernameRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{4,31}$`)

// Ref identifies a chat or user by numeric id or by username. Exactly
// one of the fields is set.
type Ref struct {
	ID       int64
	Username string
}

// ChatRef extracts a chat/user identifier argument: either an integer
// id (JSON number or numeric string) or an @username.
func ChatRef(args map[string]any, key string) (Ref, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return Ref{}, invalidf("missing required argument %q", key)
	}
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return Ref{}, invalidf("argument %q must be an integer id, got %v", key, t)
		}
		return Ref{ID: int64(t)}, nil
	case string:
		s := strings.TrimSpace(t)
		if name, ok := strings.CutPrefix(s, "@"); ok {
			if !usernameRe.MatchString(name) {
				return Ref{}, invalidf("argument %q is not a valid username: %q", key, s)
			}
			return Ref{Username: name}, nil
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Ref{}, invalidf("argument %q must be an integer id or @username, got %q", key, s)
		}
		return Ref{ID: id}, nil
	default:
		return Ref{}, invalidf("argument %q must be an integer id or @username", key)
	}
}

// UserID extracts a strictly numeric user id argument.
func UserID(args map[string]any, key string) (int64, error) {
	ref, err := ChatRef(args, key)
	if err != nil {
		return 0, err
	}
	if ref.Username != "" {
		return 0, invalidf("argument %q must be a numeric user id, got @%s", key, ref.Username)
	}
	return ref.ID, nil
}

// String extracts a required non-empty string argument.
func String(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", invalidf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidf("argument %q must be a string", key)
	}
	if strings.TrimSpace(s) == "" {
		return "", invalidf("argument %q must not be empty", key)
	}
	return s, nil
}

// OptionalString extracts a string argument, returning fallback when
// absent. A present non-string value is still an error.
func OptionalString(args map[string]any, key, fallback string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return fallback, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidf("argument %q must be a string", key)
	}
	return s, nil
}

// Int extracts a required integer argument within [min, max].
func Int(args map[string]any, key string, min, max int64) (int64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, invalidf("missing required argument %q", key)
	}
	n, err := asInt64(key, v)
	if err != nil {
		return 0, err
	}
	if n < min || n > max {
		return 0, invalidf("argument %q must be between %d and %d, got %d", key, min, max, n)
	}
	return n, nil
}

// OptionalInt extracts an integer argument within [min, max],
// returning fallback when absent.
func OptionalInt(args map[string]any, key string, fallback, min, max int64) (int64, error) {
	if v, ok := args[key]; !ok || v == nil {
		return fallback, nil
	}
	return Int(args, key, min, max)
}

// OptionalBool extracts a boolean argument, returning fallback when
// absent.
func OptionalBool(args map[string]any, key string, fallback bool) (bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return fallback, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, invalidf("argument %q must be a boolean", key)
	}
	return b, nil
}

// Enum extracts a required string argument restricted to the declared
// values.
func Enum(args map[string]any, key string, allowed ...string) (string, error) {
	s, err := String(args, key)
	if err != nil {
		return "", err
	}
	for _, a := range allowed {
		if s == a {
			return s, nil
		}
	}
	return "", invalidf("argument %q must be one of %s, got %q", key, strings.Join(allowed, ", "), s)
}

// StringList extracts a required non-empty list of strings.
func StringList(args map[string]any, key string) ([]string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, invalidf("missing required argument %q", key)
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, invalidf("argument %q must be a list of strings", key)
	}
	if len(raw) == 0 {
		return nil, invalidf("argument %q must not be empty", key)
	}
	out := make([]string, 0, len(raw))
	for i, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, invalidf("argument %q element %d must be a string", key, i)
		}
		out = append(out, s)
	}
	return out, nil
}

func asInt64(key string, v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0, invalidf("argument %q must be an integer, got %v", key, t)
		}
		return int64(t), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, invalidf("argument %q must be an integer, got %q", key, t)
		}
		return n, nil
	default:
		return 0, invalidf("argument %q must be an integer", key)
	}
}
