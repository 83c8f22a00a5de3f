package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// estimateTokens gives a rough local count of prompt tokens for logging
// alongside the provider-reported usage. Returns 0 when no encoding is
// available; stored usage always comes from the provider.
func (c *Client) estimateTokens(messages []Message) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.EncodingForModel(c.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
			if err != nil {
				return
			}
		}
		encoding = enc
	})
	if encoding == nil {
		return 0
	}

	n := 0
	for _, m := range messages {
		n += len(encoding.Encode(m.Content, nil, nil))
	}
	return n
}
