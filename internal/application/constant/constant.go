package constant

// Ключи атрибутов slog
const (
	Error        = "error"
	UserID       = "user_id"
	UserName     = "user_name"
	SessionID    = "session_id"
	CallID       = "call_id"
	ConnectionID = "connection_id"
	EventType    = "event_type"
	State        = "state"
	Reason       = "reason"
)
