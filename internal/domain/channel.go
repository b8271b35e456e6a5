package domain

// Channel identifies a conversation thread: a direct pairing of two
// identities, or a job-scoped thread. Channels are resolved lazily on
// first access and revisiting the same pair yields the same channel.
type Channel struct {
	ID           string `json:"id"`
	ParticipantA string `json:"participantA"`
	ParticipantB string `json:"participantB"`
}

// HasPair reports whether the given sender/receiver pair matches the
// channel's two participants, in either direction. Frames that fail this
// check belong to a superseded channel and must be dropped.
func (c Channel) HasPair(senderID, receiverID string) bool {
	return (senderID == c.ParticipantA && receiverID == c.ParticipantB) ||
		(senderID == c.ParticipantB && receiverID == c.ParticipantA)
}

// Identity is the locally persisted user identity read at session start.
type Identity struct {
	ID          string `json:"id" mapstructure:"id"`
	DisplayName string `json:"displayName" mapstructure:"display_name"`
	Avatar      string `json:"avatar,omitempty" mapstructure:"avatar"`
}
