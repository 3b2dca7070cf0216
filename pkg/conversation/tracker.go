// Package conversation remembers, per model family and conversation, the
// message list the provider last reported a token total for, and matches new
// message lists against it so only the unseen tail needs estimating.
package conversation

import (
	"time"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"

	"github.com/wycats/SferaDev-sub001/pkg/chat"
	"github.com/wycats/SferaDev-sub001/pkg/logging"
	"github.com/wycats/SferaDev-sub001/pkg/lru"
	"github.com/wycats/SferaDev-sub001/pkg/metrics"
)

const (
	// DefaultCapacity bounds the number of remembered conversations.
	DefaultCapacity = 100

	// DefaultTTL is how long a remembered conversation stays usable.
	DefaultTTL = time.Hour

	// DefaultID keys conversations recorded without an identifier.
	DefaultID = "__default__"
)

// MatchType classifies a lookup.
type MatchType string

const (
	MatchNone   MatchType = "none"
	MatchExact  MatchType = "exact"
	MatchPrefix MatchType = "prefix"
)

// Known is the remembered state of one conversation.
type Known struct {
	ModelFamily    string
	ConversationID string
	Digests        []digest.Digest
	ActualTokens   int
	Timestamp      time.Time
}

// Match is the result of a lookup. NewMessageIndices is set for prefix
// matches and lists the positions past the known prefix.
type Match struct {
	Type              MatchType
	KnownTokens       int
	NewMessageIndices []int
}

type key struct {
	family string
	id     string
}

// Config configures a Tracker. Zero values use the defaults.
type Config struct {
	Capacity int
	TTL      time.Duration
	Now      func() time.Time
	Logger   logging.Logger
	Metrics  metrics.Recorder
}

// Tracker stores known conversation states under an LRU bound with a lazy
// TTL: expired entries are purged on writes and ignored on reads, with no
// background sweep. It is not safe for concurrent use.
type Tracker struct {
	states  *lru.Cache[key, Known]
	ttl     time.Duration
	now     func() time.Time
	logger  logging.Logger
	metrics metrics.Recorder
}

// NewTracker creates a Tracker.
func NewTracker(cfg Config) *Tracker {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	t := &Tracker{
		states:  lru.New[key, Known](cfg.Capacity),
		ttl:     cfg.TTL,
		now:     cfg.Now,
		logger:  logging.OrDisabled(cfg.Logger).With("component", "conversation"),
		metrics: metrics.OrNoop(cfg.Metrics),
	}
	t.states.OnEvict(func(key, Known) { t.metrics.CacheEviction(metrics.CacheState, 1) })
	return t
}

// NewID returns a fresh conversation identifier, for callers that need to
// keep a sub-task's state apart from its parent's.
func NewID() string {
	return uuid.NewString()
}

func makeKey(family, conversationID string) key {
	if conversationID == "" {
		conversationID = DefaultID
	}
	return key{family: family, id: conversationID}
}

// RecordActual remembers that messages cost actualTokens under family,
// replacing whatever was known for the same conversation.
func (t *Tracker) RecordActual(messages []chat.Message, family string, actualTokens int, conversationID string) {
	now := t.now()
	if purged := t.purgeExpired(now); purged > 0 {
		t.logger.Debug("purged expired conversation states", "count", purged)
		t.metrics.CacheEviction(metrics.CacheState, purged)
	}

	k := makeKey(family, conversationID)
	t.states.Put(k, Known{
		ModelFamily:    family,
		ConversationID: k.id,
		Digests:        chat.Digests(messages),
		ActualTokens:   actualTokens,
		Timestamp:      now,
	})
}

// Lookup matches messages against the known state for (family,
// conversationID). Any differing digest in the overlapping range, a shorter
// list, or no state at all yields MatchNone.
func (t *Tracker) Lookup(messages []chat.Message, family, conversationID string) Match {
	match := t.Peek(messages, family, conversationID)
	t.metrics.ConversationLookup(string(match.Type))
	return match
}

// Peek is Lookup without recording a lookup metric.
func (t *Tracker) Peek(messages []chat.Message, family, conversationID string) Match {
	known, ok := t.states.Get(makeKey(family, conversationID))
	if !ok || t.expired(known, t.now()) {
		return Match{Type: MatchNone}
	}
	if len(messages) < len(known.Digests) {
		return Match{Type: MatchNone}
	}
	for i, d := range known.Digests {
		if messages[i].Digest() != d {
			return Match{Type: MatchNone}
		}
	}

	if len(messages) == len(known.Digests) {
		return Match{Type: MatchExact, KnownTokens: known.ActualTokens}
	}
	indices := make([]int, 0, len(messages)-len(known.Digests))
	for i := len(known.Digests); i < len(messages); i++ {
		indices = append(indices, i)
	}
	return Match{Type: MatchPrefix, KnownTokens: known.ActualTokens, NewMessageIndices: indices}
}

// Known returns the stored state for (family, conversationID).
func (t *Tracker) Known(family, conversationID string) (Known, bool) {
	return t.states.Peek(makeKey(family, conversationID))
}

// Len returns the number of stored states, expired or not.
func (t *Tracker) Len() int {
	return t.states.Len()
}

// Clear forgets every conversation.
func (t *Tracker) Clear() {
	t.states.Clear()
}

func (t *Tracker) expired(k Known, now time.Time) bool {
	return now.Sub(k.Timestamp) > t.ttl
}

func (t *Tracker) purgeExpired(now time.Time) int {
	return t.states.RemoveFunc(func(_ key, k Known) bool {
		return t.expired(k, now)
	})
}
