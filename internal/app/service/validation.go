package service

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sifan077/GateLink/internal/app/model"
)

// ErrInvalidInput is the parent of every ValidationError.
var ErrInvalidInput = errors.New("invalid input")

// ValidationError describes a rejected creation field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// linkFields holds creation input after parsing. Nil pointers mean "unset".
type linkFields struct {
	targetURL    string
	label        *string
	maxClicks    *int
	expiresAt    *time.Time
	revealAt     *time.Time
	delaySeconds *int
}

// parseLinkFields validates raw creation input. Empty optional fields stay unset; a
// non-empty value that does not parse is an error and is never coerced to a default.
func parseLinkFields(in CreateLinkInput, now time.Time) (*linkFields, error) {
	var out linkFields

	target := strings.TrimSpace(in.TargetURL)
	if target == "" {
		return nil, invalid("target_url", "please enter a target URL")
	}
	lower := strings.ToLower(target)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return nil, invalid("target_url", "URL must start with http:// or https://")
	}
	if parsed, err := url.Parse(target); err != nil || parsed.Host == "" {
		return nil, invalid("target_url", "URL is not valid")
	}
	out.targetURL = target

	if label := strings.TrimSpace(in.Label); label != "" {
		out.label = &label
	}

	if raw := strings.TrimSpace(in.MaxClicks); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, invalid("max_clicks", "max clicks must be a whole number (1 or more)")
		}
		out.maxClicks = &n
	}

	if raw := strings.TrimSpace(in.ExpiresAt); raw != "" {
		t, err := parseTimestamp(raw)
		if err != nil || !t.After(now) {
			return nil, invalid("expires_at", "expiry date is invalid or in the past, choose a future date")
		}
		out.expiresAt = &t
	}

	if raw := strings.TrimSpace(in.RevealAt); raw != "" {
		t, err := parseTimestamp(raw)
		if err != nil {
			return nil, invalid("reveal_at", "reveal time must be an RFC 3339 timestamp")
		}
		if out.expiresAt != nil && !t.Before(*out.expiresAt) {
			return nil, invalid("reveal_at", "reveal time must be before the expiry date")
		}
		out.revealAt = &t
	}

	if raw := strings.TrimSpace(in.DelaySeconds); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, invalid("delay_seconds", "delay must be a whole number of seconds (0 or more)")
		}
		if int64(n) > model.MaxDelaySeconds {
			return nil, invalid("delay_seconds", "delay is too long")
		}
		if out.expiresAt != nil && !now.Add(time.Duration(n)*time.Second).Before(*out.expiresAt) {
			return nil, invalid("delay_seconds", "delay must end before the expiry date")
		}
		out.delaySeconds = &n
	}

	return &out, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
