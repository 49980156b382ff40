package fetcher

import "github.com/rickgao/aggression-monitor/internal/model"

// Cursor tracks the highest trade id observed by a loop. It lives for the
// lifetime of the process and is not safe for concurrent use.
type Cursor struct {
	last int64
}

// Last returns the highest id seen, or 0 before the first window.
func (c *Cursor) Last() int64 {
	return c.last
}

// Advance moves the cursor past trades and returns how many were above the
// previous position. regressed is true when the newest id is below the cursor,
// which means the upstream served stale data.
func (c *Cursor) Advance(trades []model.Trade) (fresh int, regressed bool) {
	prev := c.last
	var newest int64

	for _, t := range trades {
		if t.ID > prev {
			fresh++
		}
		if t.ID > newest {
			newest = t.ID
		}
	}

	if len(trades) > 0 && newest < prev {
		regressed = true
	}
	if newest > c.last {
		c.last = newest
	}
	return fresh, regressed
}
