// Package apperrors defines the typed errors shared by the client packages.
package apperrors

import (
	"github.com/pkg/errors"
)

// Error codes
const (
	CodeUnknown          = "unknown"
	CodeNotAuthenticated = "not_authenticated"
	CodeNotConnected     = "not_connected"
	CodeSendBufferFull   = "send_buffer_full"
	CodeLoginRejected    = "login_rejected"
	CodeHistoryStatus    = "history_status"
	CodeClosed           = "closed"
)

// ChatError 客户端错误
type ChatError struct {
	Code    string
	Message string
}

func (e *ChatError) Error() string {
	return e.Message
}

// 预定义错误
var (
	ErrNotAuthenticated = &ChatError{Code: CodeNotAuthenticated, Message: "login first"}
	ErrNotConnected     = &ChatError{Code: CodeNotConnected, Message: "connection not open"}
	ErrSendBufferFull   = &ChatError{Code: CodeSendBufferFull, Message: "send buffer full"}
	ErrLoginRejected    = &ChatError{Code: CodeLoginRejected, Message: "login rejected"}
	ErrHistoryStatus    = &ChatError{Code: CodeHistoryStatus, Message: "history request failed"}
	ErrClosed           = &ChatError{Code: CodeClosed, Message: "channel closed"}
)

// Code returns the ChatError code found in err's cause chain, or CodeUnknown.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeUnknown
}

// Is reports whether err wraps target. It accepts pkg/errors wrapping as
// well as fmt %w chains.
func Is(err, target error) bool {
	if errors.Is(err, target) {
		return true
	}
	return errors.Cause(err) == target
}
