// Package tokenizer adapts an external token-counting function for the
// gateway's chat-message and text token estimates. The spec treats the
// tokenizer itself as an out-of-scope external collaborator (no BPE table
// ships in this repository); this package provides the fallback estimator
// and the seam (Counter) a real implementation plugs into.
package tokenizer

import (
	"math"

	"github.com/llmgateway/gateway/internal/providers"
)

// Counter counts tokens in a string. A production deployment supplies one
// backed by a real BPE vocabulary; Fallback below is used when none is
// configured or when Counter.Count returns an error.
type Counter interface {
	Count(s string) (int, error)
}

// Adapter implements spec §4.3: countChat and countText, falling back to
// ceil(len/4) (never less than 1) when the primary Counter is unset or
// fails.
type Adapter struct {
	primary Counter
}

// New builds an Adapter. primary may be nil, in which case the fallback
// heuristic is always used.
func New(primary Counter) *Adapter {
	return &Adapter{primary: primary}
}

// CountText implements countText(s).
func (a *Adapter) CountText(s string) int {
	if a.primary != nil {
		if n, err := a.primary.Count(s); err == nil {
			return n
		}
	}
	return fallbackCount(s)
}

// CountChat implements countChat(messages): sums the per-message role and
// content token counts, plus each tool call's name and arguments counted as
// text. Messages with non-string (array) content are expected to be
// pre-flattened to their text representation by the caller (see
// providers.Message.Content).
func (a *Adapter) CountChat(messages []providers.Message) int {
	total := 0
	for _, m := range messages {
		total += a.CountText(m.Role)
		total += a.CountText(m.Content)
		for _, tc := range m.ToolCalls {
			total += a.CountText(tc.Name + tc.Arguments)
		}
	}
	return total
}

func fallbackCount(s string) int {
	n := int(math.Ceil(float64(len(s)) / 4))
	if n < 1 {
		return 1
	}
	return n
}
