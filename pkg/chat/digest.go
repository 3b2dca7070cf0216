package chat

import (
	_ "crypto/sha256"
	"encoding/binary"
	"hash"

	"github.com/opencontainers/go-digest"
)

// Digest returns a stable, order-sensitive content digest of the message.
// Every field is length-prefixed and every part starts with its kind, so
// neither field boundaries nor part kinds can be confused.
func (m Message) Digest() digest.Digest {
	d := digest.Canonical.Digester()
	h := d.Hash()
	writeField(h, string(m.Role))
	writeLen(h, len(m.Parts))
	for _, p := range m.Parts {
		writeField(h, string(p.Kind()))
		switch v := p.(type) {
		case TextPart:
			writeField(h, v.Text)
		case DataPart:
			writeField(h, v.MediaType)
			writeLen(h, len(v.Data))
			h.Write(v.Data)
		case ToolCallPart:
			writeField(h, v.Name)
			writeField(h, v.CallID)
			writeField(h, v.SerializedInput())
		case ToolResultPart:
			writeField(h, v.CallID)
			writeLen(h, len(v.Content))
			for _, c := range v.Content {
				writeField(h, c)
			}
		}
	}
	return d.Digest()
}

// TextDigest digests a bare string, used to key memoized text counts.
func TextDigest(text string) digest.Digest {
	return digest.FromString(text)
}

// Digests returns the ordered digest list of a conversation.
func Digests(messages []Message) []digest.Digest {
	out := make([]digest.Digest, len(messages))
	for i, m := range messages {
		out[i] = m.Digest()
	}
	return out
}

func writeField(h hash.Hash, s string) {
	writeLen(h, len(s))
	h.Write([]byte(s))
}

func writeLen(h hash.Hash, n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	h.Write(buf[:])
}
