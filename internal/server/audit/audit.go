// Package audit defines the audit fact emitted on every security-relevant
// state transition and the fire-and-forget emitter delivering facts to an
// external sink. Emission is best-effort: a failing sink never rolls back
// or blocks the workflow that produced the fact.
package audit

import (
	"context"
	"time"
)

// Action identifies the state transition a fact describes.
type Action string

const (
	ActionRegister          Action = "REGISTER"
	ActionEmailVerified     Action = "EMAIL_VERIFIED"
	ActionLoginSuccess      Action = "LOGIN_SUCCESS"
	ActionLoginFailed       Action = "LOGIN_FAILED"
	ActionLogout            Action = "LOGOUT"
	ActionAbortAllSessions  Action = "ABORT_ALL_SESSIONS"
	ActionTokenRefresh      Action = "TOKEN_REFRESH"
	ActionRoleChangeRequest Action = "ROLE_CHANGE_REQUEST"
	ActionRoleChangeConfirm Action = "ROLE_CHANGE_CONFIRM"
	ActionAccessDenied      Action = "ACCESS_DENIED"
)

// Fact is a single structured audit record.
type Fact struct {
	Action     Action            `json:"action"`
	UserID     string            `json:"user_id,omitempty"`
	TableName  string            `json:"table_name,omitempty"`
	RecordID   string            `json:"record_id,omitempty"`
	OldValues  map[string]string `json:"old_values,omitempty"`
	NewValues  map[string]string `json:"new_values,omitempty"`
	IPAddress  string            `json:"ip_address,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	Details    string            `json:"details,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Sink consumes facts. Implementations own their delivery guarantees and
// log their own failures.
type Sink interface {
	Emit(ctx context.Context, fact Fact)
}

// Emitter is the capability handed to the workflows.
type Emitter interface {
	Emit(ctx context.Context, fact Fact)
}
