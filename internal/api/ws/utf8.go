package ws

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/GriffinCanCode/termhost/internal/domain/tabs"
)

// utf8Carry turns per-tab byte chunks into valid UTF-8 text. A multi-byte
// sequence split across chunks is held back and prefixed to the next chunk
// of the same tab.
type utf8Carry struct {
	mu      sync.Mutex
	pending map[tabs.TabID][]byte
}

func newUTF8Carry() *utf8Carry {
	return &utf8Carry{pending: make(map[tabs.TabID][]byte)}
}

// decode returns the text ready to send for id.
func (c *utf8Carry) decode(id tabs.TabID, data []byte) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if held := c.pending[id]; len(held) > 0 {
		data = append(held, data...)
	}
	complete, rest := splitIncomplete(data)
	if len(rest) > 0 {
		c.pending[id] = append([]byte(nil), rest...)
	} else {
		delete(c.pending, id)
	}
	return strings.ToValidUTF8(string(complete), "�")
}

// forget drops anything held for id.
func (c *utf8Carry) forget(id tabs.TabID) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// splitIncomplete separates a trailing partial rune from p.
func splitIncomplete(p []byte) (complete, rest []byte) {
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax+1; i-- {
		if !utf8.RuneStart(p[i]) {
			continue
		}
		if !utf8.FullRune(p[i:]) {
			return p[:i], p[i:]
		}
		break
	}
	return p, nil
}
