package worker

import "time"

// TTL is the result of one call to TTLGenerator.GenerateNext: the lease
// expiration timestamp to write into the task-status row.
type TTL struct {
	NextExpirationAt int64 // epoch seconds
}

// TTLGenerator holds the two configured lease constants and the
// generator's own notion of when the next refresh is due, per spec §4.D.
// The expiration offset must exceed the refresh interval by a safety
// margin - the agent's config loader is responsible for that invariant,
// not this type.
type TTLGenerator struct {
	refreshInterval  time.Duration
	expirationOffset time.Duration
	nextRefreshAt    int64 // epoch seconds; 0 means "never generated"
}

// NewTTLGenerator builds a generator from the configured refresh interval
// and expiration offset.
func NewTTLGenerator(refreshInterval, expirationOffset time.Duration) *TTLGenerator {
	return &TTLGenerator{refreshInterval: refreshInterval, expirationOffset: expirationOffset}
}

// GenerateNext advances next_refresh_at to now+refresh_interval and
// returns a TTL whose NextExpirationAt is now+expiration_offset. Called on
// every claim and on every renewal attempt (including throttled retries,
// so a delayed renewal still lands a lease that outlives the next planned
// refresh - spec §4.D rationale).
func (g *TTLGenerator) GenerateNext(now time.Time) TTL {
	g.nextRefreshAt = now.Add(g.refreshInterval).Unix()
	return TTL{NextExpirationAt: now.Add(g.expirationOffset).Unix()}
}

// ShouldRefresh reports whether a renewal is due: next_refresh_at is unset,
// or would lapse before the next scheduled wakeup (now + pullInterval).
func (g *TTLGenerator) ShouldRefresh(now time.Time, pullInterval time.Duration) bool {
	if g.nextRefreshAt == 0 {
		return true
	}
	return g.nextRefreshAt < now.Add(pullInterval).Unix()
}

// NextRefreshAt exposes the generator's current next_refresh_at, for
// tests.
func (g *TTLGenerator) NextRefreshAt() int64 {
	return g.nextRefreshAt
}
