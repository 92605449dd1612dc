package idempotency

import (
	"strings"
)

const (
	keyPrefix    = "dedup"
	keySeparator = ":"

	// maxSegmentLen caps each key component so a hostile payload cannot
	// inflate store keys without bound.
	maxSegmentLen = 64
)

// BuildKey constructs the deterministic idempotency key for one provider
// event. channelID and merchantID may be empty; messageID must not be. The
// key always has fixed arity, so an empty optional segment can never make
// two distinct component tuples collide.
func BuildKey(provider, channelID, merchantID, messageID string) string {
	segments := []string{
		keyPrefix,
		sanitizeSegment(provider),
		sanitizeSegment(channelID),
		sanitizeSegment(merchantID),
		sanitizeSegment(messageID),
	}
	return strings.Join(segments, keySeparator)
}

// sanitizeSegment strips every rune outside [A-Za-z0-9_\-.] and caps the
// segment length. The separator itself is stripped so a segment can never
// fake extra arity.
func sanitizeSegment(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-' || r == '.':
			b.WriteRune(r)
		}
		if b.Len() >= maxSegmentLen {
			break
		}
	}
	return b.String()
}
