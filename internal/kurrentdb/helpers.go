package kurrentdb

import (
	"strings"

	"github.com/google/uuid"
)

// toUUID converts an event ID to uuid.UUID, generating one if it does not parse.
func toUUID(id string) uuid.UUID {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.New()
	}
	return parsed
}

// streamName builds "<prefix>-<subject>", e.g. casework-SOL-001-01.
func streamName(prefix, subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "unknown"
	}
	if prefix == "" {
		return subject
	}
	return prefix + "-" + subject
}
