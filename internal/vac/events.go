package vac

// VoiceStateChange is a member's voice attachment before and after an
// update. Empty channel ids mean "not connected".
type VoiceStateChange struct {
	GuildID           string
	MemberID          string
	MemberDisplayName string
	PreviousChannelID string
	CurrentChannelID  string
	PreviousParentID  string
	CurrentParentID   string
}

// ChannelKind distinguishes voice channels from everything else.
type ChannelKind int

const (
	ChannelKindOther ChannelKind = iota
	ChannelKindVoice
)

// ChannelDeleted reports a channel removed from a guild.
type ChannelDeleted struct {
	GuildID   string
	ChannelID string
	Kind      ChannelKind
}
