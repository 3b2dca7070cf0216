package tokens

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Encoding names understood by tiktoken.
const (
	EncodingO200k  = "o200k_base"
	EncodingCl100k = "cl100k_base"
)

// Encoder turns text into token ids.
type Encoder interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
}

// EncoderResolver loads an encoder by encoding name.
type EncoderResolver func(encoding string) (Encoder, error)

// TiktokenResolver resolves encodings through tiktoken-go.
func TiktokenResolver(encoding string) (Encoder, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return enc, nil
}

var o200kPrefixes = []string{"gpt-4o", "gpt-4.1", "gpt-4.5", "gpt-5", "o1", "o3", "o4", "chatgpt"}

// EncodingForFamily picks the encoding used to approximate a model family.
// Newer OpenAI families use o200k_base; everything else, including Claude and
// Gemini whose tokenizers are not public, is approximated with cl100k_base.
func EncodingForFamily(family string) string {
	f := strings.ToLower(strings.TrimSpace(family))
	if i := strings.LastIndex(f, "/"); i >= 0 {
		f = f[i+1:]
	}
	for _, p := range o200kPrefixes {
		if strings.HasPrefix(f, p) {
			return EncodingO200k
		}
	}
	return EncodingCl100k
}

// IsGeminiFamily reports whether family names a Google Gemini model.
func IsGeminiFamily(family string) bool {
	return strings.Contains(strings.ToLower(family), "gemini")
}
