package indengine

import (
	"time"

	"candle-featuresv1/internal/model"
)

// peekThrottle limits live previews to one per market per gap. A final
// kline always passes and resets its market.
type peekThrottle struct {
	gap  time.Duration
	last map[string]time.Time
	now  func() time.Time
}

func newPeekThrottle(gap time.Duration) *peekThrottle {
	return &peekThrottle{gap: gap, last: make(map[string]time.Time), now: time.Now}
}

// allow reports whether k should be processed.
func (p *peekThrottle) allow(k model.Kline) bool {
	key := k.Key()
	if k.Final {
		delete(p.last, key)
		return true
	}
	if p.gap <= 0 {
		return true
	}
	now := p.now()
	if t, ok := p.last[key]; ok && now.Sub(t) < p.gap {
		return false
	}
	p.last[key] = now
	return true
}
