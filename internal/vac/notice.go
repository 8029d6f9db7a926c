package vac

import "context"

// Message keys emitted by the service. Rendering them into text is the job
// of the Sink.
const (
	KeyUserError                = "bot/vcAutoCreation/error"
	KeyError                    = "log/bot/vcAutoCreation/error"
	KeyCreateChannel            = "log/bot/vcAutoCreation/createChannel"
	KeyDeleteChannel            = "log/bot/vcAutoCreation/deleteChannel"
	KeyDeleteMismatch           = "log/bot/vcAutoCreation/deleteMismatch"
	KeyDeleteTriggerChannel     = "log/bot/vcAutoCreation/deleteTriggerChannel"
	KeyDeleteAutoCreatedChannel = "log/bot/vcAutoCreation/deleteAutoCreatedChannel"
)

// Notice is a structured event: a message key plus named parameters.
type Notice struct {
	Key    string
	Params map[string]string
}

// NewNotice builds a Notice from alternating name/value pairs.
func NewNotice(key string, kv ...string) Notice {
	params := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		params[kv[i]] = kv[i+1]
	}
	return Notice{Key: key, Params: params}
}

// Sink receives the service's notices. Info/Warn/Error go to the log;
// Notify posts a user-facing message into a channel.
type Sink interface {
	Info(n Notice)
	Warn(n Notice, err error)
	Error(n Notice, err error)
	Notify(ctx context.Context, channelID string, n Notice) error
}
