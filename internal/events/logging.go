package events

import (
	"context"
	"fmt"

	"habraterm/internal/logger"
)

// Logged 包装 Publisher，在每次发布后记录一条 debug 日志。
// entry 为 nil 时直接返回原 Publisher。
func Logged(pub Publisher, entry *logger.LogEntry) Publisher {
	if entry == nil {
		return pub
	}
	return PublisherFunc(func(ctx context.Context, event Event) error {
		err := pub.Publish(ctx, event)
		fields := logger.Fields{
			"type":       event.Type,
			"command_id": event.CommandID,
			"payload":    describePayload(event.Payload),
		}
		if err != nil {
			entry.WithFields(fields).WithError(err).Warn("failed to publish event into EQ")
			return err
		}
		entry.WithFields(fields).Debug("published event into EQ")
		return nil
	})
}

func describePayload(payload any) string {
	switch p := payload.(type) {
	case nil:
		return ""
	case string:
		return fmt.Sprintf("%q", p)
	case CommandResult:
		if p.Error != "" {
			return fmt.Sprintf("exit=%d error=%q", p.ExitCode, p.Error)
		}
		return fmt.Sprintf("exit=%d", p.ExitCode)
	default:
		return fmt.Sprintf("%v", p)
	}
}
