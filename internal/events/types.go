package events

import "time"

// EventType 描述后端事件通道。
type EventType string

const (
	// EventOutput 携带一行命令输出。
	EventOutput EventType = "output"
	// EventPathUpdate 携带新的工作目录，用于拼接提示符。
	EventPathUpdate EventType = "path-update"
	// EventCommandDone 在命令结束后发出，Payload 为 CommandResult。
	EventCommandDone EventType = "command.done"
)

// CommandResult 是 EventCommandDone 的载荷。
type CommandResult struct {
	ExitCode int
	Error    string
}

// Event 是后端发往前端的唯一消息格式。
// Payload 的具体结构由 Type 决定：output/path-update 为 string，command.done 为 CommandResult。
type Event struct {
	Type      EventType
	CommandID string
	Seq       uint64
	Timestamp time.Time
	Payload   any
}

// Text 返回字符串载荷；非字符串载荷返回空串。
func (e Event) Text() string {
	s, _ := e.Payload.(string)
	return s
}

// Output 构造 output 事件。
func Output(commandID, line string) Event {
	return Event{Type: EventOutput, CommandID: commandID, Timestamp: time.Now(), Payload: line}
}

// PathUpdate 构造 path-update 事件。
func PathUpdate(commandID, path string) Event {
	return Event{Type: EventPathUpdate, CommandID: commandID, Timestamp: time.Now(), Payload: path}
}

// CommandDone 构造 command.done 事件。
func CommandDone(commandID string, res CommandResult) Event {
	return Event{Type: EventCommandDone, CommandID: commandID, Timestamp: time.Now(), Payload: res}
}
