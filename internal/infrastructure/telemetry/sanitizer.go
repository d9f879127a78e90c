package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// PIILevel controls how much chat content reaches logs and spans.
type PIILevel string

const (
	// PIILevelNone redacts all message content
	PIILevelNone PIILevel = "none"
	// PIILevelHashed replaces detected PII with salted hashes
	PIILevelHashed PIILevel = "hashed"
	// PIILevelFull performs no sanitization
	PIILevelFull PIILevel = "full"
)

// ParsePIILevel maps a config value to a level; unknown values fall back to hashed.
func ParsePIILevel(value string) PIILevel {
	switch PIILevel(strings.ToLower(strings.TrimSpace(value))) {
	case PIILevelNone:
		return PIILevelNone
	case PIILevelFull:
		return PIILevelFull
	default:
		return PIILevelHashed
	}
}

// Valid reports whether l is one of the known levels.
func (l PIILevel) Valid() bool {
	return l == PIILevelNone || l == PIILevelHashed || l == PIILevelFull
}

// Sanitizer scrubs chat messages, user ids and bearer tokens before they are logged.
type Sanitizer struct {
	level PIILevel
	salt  string

	emailPattern  *regexp.Regexp
	phonePattern  *regexp.Regexp
	cardPattern   *regexp.Regexp
	ipv4Pattern   *regexp.Regexp
	bearerPattern *regexp.Regexp
}

// NewSanitizer creates a sanitizer; salt keeps hashes stable per installation.
func NewSanitizer(level PIILevel, salt string) *Sanitizer {
	return &Sanitizer{
		level:         level,
		salt:          salt,
		emailPattern:  regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
		phonePattern:  regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`),
		cardPattern:   regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`),
		ipv4Pattern:   regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
		bearerPattern: regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-._~+/]+=*`),
	}
}

// Level returns the configured level.
func (s *Sanitizer) Level() PIILevel {
	return s.level
}

// SanitizeContent scrubs a chat message or answer.
func (s *Sanitizer) SanitizeContent(input string) string {
	if input == "" {
		return ""
	}
	switch s.level {
	case PIILevelNone:
		return "[REDACTED]"
	case PIILevelFull:
		return s.stripTokens(input)
	default:
		return s.hashPII(input)
	}
}

// SanitizeUserID hides account identifiers unless full logging was requested.
func (s *Sanitizer) SanitizeUserID(userID string) string {
	if userID == "" {
		return ""
	}
	switch s.level {
	case PIILevelNone:
		return "[REDACTED]"
	case PIILevelFull:
		return userID
	default:
		return s.hash(userID)
	}
}

// SanitizeFields scrubs every string value of a decoded JSON body, recursively.
func (s *Sanitizer) SanitizeFields(body any) any {
	switch v := body.(type) {
	case string:
		return s.SanitizeContent(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			if isIdentifierKey(k) {
				out[k] = item
				continue
			}
			out[k] = s.SanitizeFields(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = s.SanitizeFields(item)
		}
		return out
	default:
		return v
	}
}

// Identifiers and bookkeeping fields are safe to log as is.
func isIdentifierKey(key string) bool {
	return key == "id" || strings.HasSuffix(key, "_id") || strings.HasSuffix(key, "_ids") ||
		key == "role" || key == "success" || key == "page" || key == "per_page" || key == "total" || key == "pages"
}

func (s *Sanitizer) stripTokens(input string) string {
	return s.bearerPattern.ReplaceAllString(input, "Bearer [REDACTED]")
}

func (s *Sanitizer) hashPII(input string) string {
	result := s.stripTokens(input)

	result = s.emailPattern.ReplaceAllStringFunc(result, func(match string) string {
		return fmt.Sprintf("[EMAIL:%s]", s.hash(match))
	})

	// Cards before phones, the phone pattern matches inside card numbers.
	result = s.cardPattern.ReplaceAllStringFunc(result, func(string) string {
		return "[CC:REDACTED]"
	})

	result = s.phonePattern.ReplaceAllStringFunc(result, func(match string) string {
		return fmt.Sprintf("[PHONE:%s]", s.hash(match))
	})

	result = s.ipv4Pattern.ReplaceAllStringFunc(result, func(match string) string {
		return fmt.Sprintf("[IP:%s]", s.hash(match))
	})

	return result
}

// hash returns the first 8 hex chars of a salted SHA-256.
func (s *Sanitizer) hash(data string) string {
	h := sha256.New()
	h.Write([]byte(data + s.salt))
	return hex.EncodeToString(h.Sum(nil))[:8]
}
