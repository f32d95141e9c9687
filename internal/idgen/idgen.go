// Package idgen issues the prefixed identifiers used across the engine.
package idgen

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/oklog/ulid/v2"
)

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Prefixes and random-part sizes of each id kind.
const (
	UserPrefix    = "user_"
	RoomPrefix    = "room_"
	PollPrefix    = "poll_"
	MessagePrefix = "msg_"

	userIDSize = 12
	roomIDSize = 8
	pollIDSize = 10
)

// Generator produces ids. Message ids are monotonic ULIDs so sorting by
// id matches creation order even within one millisecond.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// New creates a Generator.
func New() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

func (g *Generator) nanoid(prefix string, size int) (string, error) {
	id, err := gonanoid.Generate(alphabet, size)
	if err != nil {
		return "", fmt.Errorf("failed to generate NanoID: %w", err)
	}
	return prefix + id, nil
}

// UserID returns a new user id.
func (g *Generator) UserID() (string, error) { return g.nanoid(UserPrefix, userIDSize) }

// RoomID returns a new room id.
func (g *Generator) RoomID() (string, error) { return g.nanoid(RoomPrefix, roomIDSize) }

// PollID returns a new poll id.
func (g *Generator) PollID() (string, error) { return g.nanoid(PollPrefix, pollIDSize) }

// MessageID returns a new message id.
func (g *Generator) MessageID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(g.now()), g.entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return MessagePrefix + id.String(), nil
}

// VoteID returns a new vote id.
func (g *Generator) VoteID() string {
	return uuid.NewString()
}

// MessageTime extracts the creation time embedded in a message id.
func MessageTime(id string) (time.Time, error) {
	parsed, err := ulid.Parse(strings.TrimPrefix(id, MessagePrefix))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ULID format: %w", err)
	}
	return ulid.Time(parsed.Time()), nil
}
