package zaputils

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func ReplierID(key string, id uuid.UUID) zap.Field {
	return zap.Stringer(key, id)
}

func ReplyKind(key string, kind fmt.Stringer) zap.Field {
	return zap.Stringer(key, kind)
}

// Method omits itself when the method name is unknown.
func Method(key string, method string) zap.Field {
	if method == "" {
		return zap.Skip()
	}
	return zap.String(key, method)
}

type LoggableErrorReply struct {
	Code    string
	Message *string
}

func (e LoggableErrorReply) String() string {
	if e.Message == nil {
		return e.Code
	}

	return fmt.Sprintf("%s: %s", e.Code, *e.Message)
}

// ErrorReply logs an error reply without its details payload, which may be
// large or hold user data.
func ErrorReply(key string, code string, message *string) zap.Field {
	return zap.Stringer(key, LoggableErrorReply{
		Code:    code,
		Message: message,
	})
}
