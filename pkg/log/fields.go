package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor (matches pkg/middleware/auth.go keys)
	FieldUserID   = "user_id"
	FieldUsername = "username"
	FieldRole     = "role"

	// Live connection
	FieldConnID  = "conn_id"
	FieldAction  = "action"
	FieldChannel = "channel"
	FieldEvent   = "event"

	// Resources
	FieldPollID    = "poll_id"
	FieldRoomID    = "room_id"
	FieldMessageID = "message_id"

	// Service
	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
