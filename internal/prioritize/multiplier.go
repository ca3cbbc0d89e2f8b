package prioritize

import (
	"fmt"
	"math"
	"strings"
)

// Deterministic scoring multipliers, applied on top of the model's
// content-only base score.
const (
	VIPMultiplier             = 2.0 // boost for VIP people
	MentionMultiplier         = 2.0 // boost for direct @mentions
	PriorityChannelMultiplier = 1.5 // boost for priority channels
	MutedChannelMultiplier    = 0.5 // penalty for muted channels
)

// applyMultipliers transforms the base score on sm into the final score by
// applying the deterministic rules in order:
//
//  1. Muted channel (0.5x), skipped entirely when the user is @mentioned
//  2. Priority channel (1.5x), only when the channel is not muted
//  3. Direct @mention (2.0x)
//  4. VIP person (2.0x) - VIP has final say
//
// The final score is rounded, the category recomputed from it, and an audit
// trail appended to the reason when anything applied.
func applyMultipliers(sm *ScoredMessage, prefs *Preferences) {
	base := sm.Score
	score := float64(base)
	var adjustments []string

	mentioned := sm.Mentions(prefs.SelfUserID())

	switch {
	case prefs.IsMutedChannel(sm.ChannelName):
		if mentioned {
			// Someone explicitly asked for the user; muting never wins
			// over a direct mention.
			adjustments = append(adjustments, "muted channel skipped (@mention override)")
		} else {
			score = diminish(score, MutedChannelMultiplier)
			adjustments = append(adjustments, fmt.Sprintf("muted channel ×%.1f", MutedChannelMultiplier))
		}
	case prefs.IsPriorityChannel(sm.ChannelName):
		score = diminish(score, PriorityChannelMultiplier)
		adjustments = append(adjustments, fmt.Sprintf("priority channel ×%.1f", PriorityChannelMultiplier))
	}

	if mentioned {
		score = diminish(score, MentionMultiplier)
		adjustments = append(adjustments, fmt.Sprintf("@mention ×%.1f", MentionMultiplier))
	}

	if prefs.IsVIP(sm.UserName) {
		score = diminish(score, VIPMultiplier)
		adjustments = append(adjustments, fmt.Sprintf("VIP ×%.1f", VIPMultiplier))
	}

	final := int(math.Round(score))

	if len(adjustments) > 0 {
		sm.Reason = fmt.Sprintf("%s [Adjusted: %s, base=%d→%d]",
			sm.Reason, strings.Join(adjustments, ", "), base, final)
		sm.Adjustments = adjustments
	}

	sm.Score = final
	sm.Category = Classify(final)
}

// diminish applies a multiplier with diminishing returns as the score
// approaches 100, keeping results in bounds without clamping:
//
//	effective_boost = (m - 1) * s * ((100 - s) / 100)
//
// A multiplier of 1.0 is a no-op, and penalties (m < 1) multiply directly;
// they need no headroom protection.
//
// Examples with 2.0x: 50→75, 70→91, 90→99.
func diminish(score, multiplier float64) float64 {
	if multiplier == 1.0 {
		return score
	}
	if multiplier < 1.0 {
		return score * multiplier
	}

	boostFactor := multiplier - 1.0
	headroom := 100 - score
	effectiveBoost := boostFactor * score * (headroom / 100)

	return score + effectiveBoost
}
