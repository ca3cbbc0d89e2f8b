package prioritize

import "strings"

// Preferences holds the normalized VIP and channel sets the multiplier step
// matches against, plus the user ID used for direct-mention detection.
// Loaded once at engine construction and read-only afterwards; reloading
// requires constructing a new engine.
type Preferences struct {
	selfUserID       string
	vipPeople        map[string]struct{}
	priorityChannels map[string]struct{}
	mutedChannels    map[string]struct{}
}

// NewPreferences normalizes (lowercase, trim, drop empties) the given lists
// once, so comparison sites never have to.
func NewPreferences(selfUserID string, vipPeople, priorityChannels, mutedChannels []string) *Preferences {
	return &Preferences{
		selfUserID:       strings.TrimSpace(selfUserID),
		vipPeople:        normalizeSet(vipPeople),
		priorityChannels: normalizeSet(priorityChannels),
		mutedChannels:    normalizeSet(mutedChannels),
	}
}

// IsVIP reports whether the sender name is a configured VIP.
func (p *Preferences) IsVIP(userName string) bool {
	_, ok := p.vipPeople[normalize(userName)]
	return ok
}

// IsPriorityChannel reports whether the channel is a configured priority channel.
func (p *Preferences) IsPriorityChannel(channelName string) bool {
	_, ok := p.priorityChannels[normalize(channelName)]
	return ok
}

// IsMutedChannel reports whether the channel is muted.
func (p *Preferences) IsMutedChannel(channelName string) bool {
	_, ok := p.mutedChannels[normalize(channelName)]
	return ok
}

// SelfUserID returns the configured identity for mention detection.
func (p *Preferences) SelfUserID() string {
	return p.selfUserID
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if n := normalize(item); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}
