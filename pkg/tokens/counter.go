// Package tokens approximates token counts for chat content with tiktoken
// encodings, degrading to a character-ratio heuristic whenever an encoding
// cannot be loaded or used.
package tokens

import (
	"math"

	"github.com/opencontainers/go-digest"

	"github.com/wycats/SferaDev-sub001/pkg/chat"
	"github.com/wycats/SferaDev-sub001/pkg/logging"
	"github.com/wycats/SferaDev-sub001/pkg/lru"
	"github.com/wycats/SferaDev-sub001/pkg/metrics"
)

const (
	// CharsPerToken is the ratio used when no encoding is available.
	CharsPerToken = 3.5

	// ToolCallOverhead is added to every tool-call part.
	ToolCallOverhead = 10

	// ToolResultOverhead is added to every tool-result part.
	ToolResultOverhead = 10

	// ToolsBaseOverhead is the fixed cost of declaring any tools at all.
	ToolsBaseOverhead = 16

	// PerToolOverhead is added per tool definition.
	PerToolOverhead = 8

	// ToolsSafetyMultiplier scales the tool total to bias toward overcounting.
	ToolsSafetyMultiplier = 1.1

	// SystemPromptOverhead covers the wrapping some providers add around the
	// system prompt.
	SystemPromptOverhead = 28

	// DefaultMemoCapacity bounds the per-text memo.
	DefaultMemoCapacity = 10000
)

// allSpecial permits every special token so control sequences embedded in
// tool output are encoded as text instead of rejected.
var allSpecial = []string{"all"}

// CounterConfig configures a Counter. Zero values fall back to defaults.
type CounterConfig struct {
	Resolver     EncoderResolver
	MemoCapacity int
	Logger       logging.Logger
	Metrics      metrics.Recorder
}

// Count is a token count plus whether any of it came from the
// character-ratio fallback rather than an encoding.
type Count struct {
	Tokens   int
	Fallback bool
}

func (c Count) add(o Count) Count {
	return Count{Tokens: c.Tokens + o.Tokens, Fallback: c.Fallback || o.Fallback}
}

type memoKey struct {
	family string
	digest digest.Digest
}

// Counter approximates token counts. It never fails: every error path
// degrades to FallbackCount. It is not safe for concurrent use.
type Counter struct {
	resolver EncoderResolver
	encoders map[string]Encoder
	failed   map[string]bool
	memo     *lru.Cache[memoKey, Count]
	logger   logging.Logger
	metrics  metrics.Recorder
}

// NewCounter creates a Counter.
func NewCounter(cfg CounterConfig) *Counter {
	if cfg.Resolver == nil {
		cfg.Resolver = TiktokenResolver
	}
	if cfg.MemoCapacity <= 0 {
		cfg.MemoCapacity = DefaultMemoCapacity
	}
	c := &Counter{
		resolver: cfg.Resolver,
		encoders: make(map[string]Encoder),
		failed:   make(map[string]bool),
		memo:     lru.New[memoKey, Count](cfg.MemoCapacity),
		logger:   logging.OrDisabled(cfg.Logger).With("component", "counter"),
		metrics:  metrics.OrNoop(cfg.Metrics),
	}
	c.memo.OnEvict(func(memoKey, Count) { c.metrics.CacheEviction(metrics.CacheText, 1) })
	return c
}

// FallbackCount is the character-ratio estimate ceil(len(text)/3.5).
func FallbackCount(text string) int {
	return Ceil(float64(len(text)) / CharsPerToken)
}

// ApplyMargin returns ceil(tokens*(1+fraction)).
func ApplyMargin(tokens int, fraction float64) int {
	return Ceil(float64(tokens) * (1 + fraction))
}

// Ceil rounds up, ignoring float noise below 1e-9 so 100*1.1 stays 110.
func Ceil(x float64) int {
	return int(math.Ceil(x - 1e-9))
}

// EstimateText counts the tokens of text under family's encoding.
func (c *Counter) EstimateText(text, family string) int {
	return c.CountText(text, family).Tokens
}

// CountText is EstimateText reporting whether the fallback was used.
func (c *Counter) CountText(text, family string) Count {
	if text == "" {
		return Count{}
	}
	key := memoKey{family: family, digest: chat.TextDigest(text)}
	if n, ok := c.memo.Get(key); ok {
		c.metrics.CacheLookup(metrics.CacheText, true)
		return n
	}
	c.metrics.CacheLookup(metrics.CacheText, false)

	n, ok := c.encode(text, family)
	count := Count{Tokens: n}
	if !ok {
		c.metrics.TokenizerFallback(family)
		count = Count{Tokens: FallbackCount(text), Fallback: true}
	}
	c.memo.Put(key, count)
	return count
}

// EstimateMessage sums the cost of every part of msg.
func (c *Counter) EstimateMessage(msg chat.Message, family string) int {
	return c.CountMessage(msg, family).Tokens
}

// CountMessage is EstimateMessage reporting whether any text part fell back
// to the character ratio.
func (c *Counter) CountMessage(msg chat.Message, family string) Count {
	var total Count
	for _, part := range msg.Parts {
		total = total.add(c.countPart(part, family))
	}
	return total
}

func (c *Counter) countPart(part chat.Part, family string) Count {
	switch p := part.(type) {
	case chat.TextPart:
		return c.CountText(p.Text, family)
	case chat.DataPart:
		if p.IsImage() {
			return Count{Tokens: estimateImage(p, family)}
		}
		return Count{Tokens: Ceil(float64(len(p.Data)) / CharsPerToken)}
	case chat.ToolCallPart:
		return c.CountText(p.Name+p.SerializedInput(), family).add(Count{Tokens: ToolCallOverhead})
	case chat.ToolResultPart:
		n := c.CountText(p.CallID, family).add(Count{Tokens: ToolResultOverhead})
		for _, fragment := range p.Content {
			n = n.add(c.CountText(fragment, family))
		}
		return n
	default:
		return Count{}
	}
}

// CountTools estimates the cost of declaring tools, scaled by
// ToolsSafetyMultiplier.
func (c *Counter) CountTools(tools []chat.Tool, family string) int {
	if len(tools) == 0 {
		return 0
	}
	total := ToolsBaseOverhead
	for _, t := range tools {
		total += PerToolOverhead +
			c.EstimateText(t.Name, family) +
			c.EstimateText(t.Description, family) +
			c.EstimateText(t.SerializedSchema(), family)
	}
	return Ceil(float64(total) * ToolsSafetyMultiplier)
}

// CountSystemPrompt estimates a system prompt including structural overhead.
func (c *Counter) CountSystemPrompt(text, family string) int {
	if text == "" {
		return 0
	}
	return c.EstimateText(text, family) + SystemPromptOverhead
}

func (c *Counter) encode(text, family string) (n int, ok bool) {
	enc := c.encoderFor(EncodingForFamily(family))
	if enc == nil {
		return 0, false
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debug("encoder panicked, using fallback", "family", family, "panic", r)
			n, ok = 0, false
		}
	}()
	return len(enc.Encode(text, allSpecial, nil)), true
}

func (c *Counter) encoderFor(name string) Encoder {
	if enc, ok := c.encoders[name]; ok {
		return enc
	}
	if c.failed[name] {
		return nil
	}
	enc, err := c.resolver(name)
	if err != nil || enc == nil {
		c.logger.Warn("encoding unavailable, using character ratio", "encoding", name, "error", err)
		c.failed[name] = true
		return nil
	}
	c.encoders[name] = enc
	return enc
}

// UsesTokenizer reports whether family is counted with a real encoding
// rather than the character-ratio fallback.
func (c *Counter) UsesTokenizer(family string) bool {
	return c.encoderFor(EncodingForFamily(family)) != nil
}
