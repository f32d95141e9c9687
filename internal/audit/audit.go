package audit

import (
	"context"

	"github.com/weiawesome/wes-io-polls/pkg/log"
)

// Audit actions.
const (
	ActionPollCreate  = "poll.create"
	ActionPollVote    = "poll.vote"
	ActionPollClose   = "poll.close"
	ActionPollEdit    = "poll.edit"
	ActionPollDelete  = "poll.delete"
	ActionPollKick    = "poll.kick"
	ActionChatSend    = "chat.send"
	ActionChatDelete  = "chat.delete"
	ActionRoomCreate  = "room.create"
	ActionRoomUpdate  = "room.update"
	ActionRoomDelete  = "room.delete"
	ActionRegister    = "auth.register"
	ActionLogin       = "auth.login"
	ActionLoginFailed = "auth.login_failed"
	ActionLogout      = "auth.logout"
	ActionConnect     = "session.connect"
	ActionDisconnect  = "session.disconnect"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogWithTarget emits an audit log naming the resource acted on.
func LogWithTarget(ctx context.Context, action string, userID string, targetID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTargetID, targetID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, userID string, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
