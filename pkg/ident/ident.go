// Package ident issues collision-resistant, format-stable identifiers.
// Every identifier is a fixed per-kind prefix followed by a dashless UUID,
// e.g. "proj_9f2c4e81a7b64d0f8b3a1c5d6e7f8091". Both entry points must issue
// identifiers through this package so the format never diverges.
package ident

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Identifier kinds.
const (
	KindProject      = "project"
	KindUser         = "user"
	KindKnowledge    = "knowledge"
	KindSession      = "session"
	KindRefreshToken = "refresh_token"
)

var prefixes = map[string]string{
	KindProject:      "proj",
	KindUser:         "user",
	KindKnowledge:    "know",
	KindSession:      "sess",
	KindRefreshToken: "rtok",
}

// Generate returns a new identifier for the given kind.
// Unknown kinds fall back to the kind name itself as prefix so callers adding
// a new record type cannot silently collide with an existing format.
func Generate(kind string) string {
	prefix, ok := prefixes[kind]
	if !ok {
		prefix = kind
	}
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("%s_%s", prefix, suffix)
}

// Prefix returns the prefix used for a kind, for format checks in validation.
func Prefix(kind string) string {
	if p, ok := prefixes[kind]; ok {
		return p
	}
	return kind
}

// HasKind reports whether id carries the prefix issued for kind.
func HasKind(id, kind string) bool {
	return strings.HasPrefix(id, Prefix(kind)+"_")
}
