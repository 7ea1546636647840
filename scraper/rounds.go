package scraper

import (
	"log/slog"

	"github.com/use-agent/profilescan/simhash"
)

// roundTracker remembers the page structure of the last failed round.
type roundTracker struct {
	last uint64
	seen bool
}

// observe logs when a failed round landed on the same page layout as the
// previous failed round, which usually means a wall or challenge page that
// retries will not get past.
func (t *roundTracker) observe(runID string, round int, html string) {
	fp := simhash.Structure(html)
	if fp == 0 {
		return
	}
	if t.seen && simhash.Similar(fp, t.last, 3) {
		slog.Warn("failed round landed on the same page layout as the previous round",
			"run", runID, "round", round, "structure", simhash.Hex(fp))
	}
	t.last, t.seen = fp, true
}
