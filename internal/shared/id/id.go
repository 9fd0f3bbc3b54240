// Package id provides identifier generation for terminal sessions.
//
// Session IDs are prefixed ULIDs ("sess_01J...") so they sort by creation time
// and are recognizable in logs. Tab IDs are not generated here: they are
// per-view sequence numbers owned by the tab coordinator.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies a terminal session
type SessionID string

// SessionPrefix is prepended to every session ULID
const SessionPrefix = "sess"

// RequestPrefix is prepended to generated HTTP request IDs
const RequestPrefix = "req"

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewSessionID generates a new session ID
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

func (id SessionID) String() string { return string(id) }

// NewRequestID generates an ID for an HTTP request that arrived without one
func NewRequestID() string {
	return Default().GenerateWithPrefix(RequestPrefix)
}

// Valid reports whether id has the session prefix followed by a valid ULID.
func (id SessionID) Valid() bool {
	prefix, rest, ok := strings.Cut(string(id), "_")
	return ok && prefix == SessionPrefix && IsValid(rest)
}

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}

// Timestamp extracts the creation time from a bare or prefixed ULID.
func Timestamp(id string) (time.Time, error) {
	if _, rest, ok := strings.Cut(id, "_"); ok {
		id = rest
	}
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
