package conversation

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wycats/SferaDev-sub001/pkg/chat"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTracker(capacity int) (*Tracker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewTracker(Config{Capacity: capacity, TTL: time.Hour, Now: clock.Now}), clock
}

func conv(texts ...string) []chat.Message {
	msgs := make([]chat.Message, len(texts))
	for i, text := range texts {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		msgs[i] = chat.NewTextMessage(role, text)
	}
	return msgs
}

func TestTracker_NoState(t *testing.T) {
	tr, _ := newTracker(10)

	m := tr.Lookup(conv("hi"), "claude", "")

	assert.Equal(t, MatchNone, m.Type)
}

func TestTracker_ExactAfterRecord(t *testing.T) {
	tr, _ := newTracker(10)
	msgs := conv("hi", "hello", "how are you")

	tr.RecordActual(msgs, "claude", 500, "")
	m := tr.Lookup(msgs, "claude", "")

	assert.Equal(t, MatchExact, m.Type)
	assert.Equal(t, 500, m.KnownTokens)
	assert.Empty(t, m.NewMessageIndices)
}

func TestTracker_PrefixExtension(t *testing.T) {
	tr, _ := newTracker(10)
	msgs := conv("hi", "hello")
	tr.RecordActual(msgs, "claude", 500, "")

	extended := append(append([]chat.Message{}, msgs...), conv("a", "b", "c")...)
	m := tr.Lookup(extended, "claude", "")

	assert.Equal(t, MatchPrefix, m.Type)
	assert.Equal(t, 500, m.KnownTokens)
	assert.Equal(t, []int{2, 3, 4}, m.NewMessageIndices)
}

func TestTracker_DivergenceAnywhereIsNone(t *testing.T) {
	for i := 0; i < 3; i++ {
		t.Run(fmt.Sprintf("edit message %d", i), func(t *testing.T) {
			tr, _ := newTracker(10)
			msgs := conv("one", "two", "three")
			tr.RecordActual(msgs, "claude", 500, "")

			edited := conv("one", "two", "three", "four")
			edited[i] = chat.NewTextMessage(edited[i].Role, "edited")

			assert.Equal(t, MatchNone, tr.Lookup(edited, "claude", "").Type)
		})
	}
}

func TestTracker_ShorterListIsNone(t *testing.T) {
	tr, _ := newTracker(10)
	tr.RecordActual(conv("one", "two", "three"), "claude", 500, "")

	assert.Equal(t, MatchNone, tr.Lookup(conv("one", "two"), "claude", "").Type)
}

func TestTracker_KeyedByFamilyAndConversation(t *testing.T) {
	tr, _ := newTracker(10)
	msgs := conv("hi")
	tr.RecordActual(msgs, "claude", 100, "parent")

	assert.Equal(t, MatchExact, tr.Lookup(msgs, "claude", "parent").Type)
	assert.Equal(t, MatchNone, tr.Lookup(msgs, "claude", "subtask").Type)
	assert.Equal(t, MatchNone, tr.Lookup(msgs, "claude", "").Type)
	assert.Equal(t, MatchNone, tr.Lookup(msgs, "gpt-4o", "parent").Type)
}

func TestTracker_RecordOverwrites(t *testing.T) {
	tr, _ := newTracker(10)
	tr.RecordActual(conv("a"), "claude", 100, "")
	tr.RecordActual(conv("a", "b"), "claude", 180, "")

	m := tr.Lookup(conv("a", "b"), "claude", "")
	assert.Equal(t, MatchExact, m.Type)
	assert.Equal(t, 180, m.KnownTokens)
	assert.Equal(t, MatchNone, tr.Lookup(conv("a"), "claude", "").Type)
	assert.Equal(t, 1, tr.Len())
}

func TestTracker_CapacityBound(t *testing.T) {
	tr, _ := newTracker(2)
	tr.RecordActual(conv("a"), "claude", 1, "c1")
	tr.RecordActual(conv("a"), "claude", 2, "c2")
	tr.Lookup(conv("a"), "claude", "c1")
	tr.RecordActual(conv("a"), "claude", 3, "c3")

	assert.Equal(t, 2, tr.Len())
	_, ok := tr.Known("claude", "c2")
	assert.False(t, ok, "least recently used conversation should be evicted")
	_, ok = tr.Known("claude", "c1")
	assert.True(t, ok)
}

func TestTracker_ExpiredEntryIgnoredOnRead(t *testing.T) {
	tr, clock := newTracker(10)
	msgs := conv("hi")
	tr.RecordActual(msgs, "claude", 100, "")

	clock.Advance(time.Hour + time.Second)

	assert.Equal(t, MatchNone, tr.Lookup(msgs, "claude", "").Type)
}

func TestTracker_ExpiredEntriesPurgedOnWrite(t *testing.T) {
	tr, clock := newTracker(10)
	tr.RecordActual(conv("a"), "claude", 1, "old1")
	tr.RecordActual(conv("a"), "claude", 1, "old2")
	clock.Advance(59 * time.Minute)
	tr.RecordActual(conv("a"), "claude", 1, "recent")
	clock.Advance(2 * time.Minute)

	tr.RecordActual(conv("b"), "claude", 1, "new")

	assert.Equal(t, 2, tr.Len())
	_, ok := tr.Known("claude", "recent")
	assert.True(t, ok)
	_, ok = tr.Known("claude", "old1")
	assert.False(t, ok)
}

func TestTracker_DefaultIDStored(t *testing.T) {
	tr, _ := newTracker(10)
	tr.RecordActual(conv("a"), "claude", 1, "")

	k, ok := tr.Known("claude", DefaultID)
	require.True(t, ok)
	assert.Equal(t, DefaultID, k.ConversationID)
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
