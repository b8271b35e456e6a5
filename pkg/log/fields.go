package log

const (
	// Conversation
	FieldChannelID = "channel_id"
	FieldPartnerID = "partner_id"
	FieldUserID    = "user_id"
	FieldMessageID = "message_id"

	// Session lifecycle
	FieldSession = "session"
	FieldState   = "state"

	// Service
	FieldService = "service"
)
