package delegate

// EventType enumerates the tagged union of events the core emits to the
// bus, per spec.md section 3.
type EventType string

const (
	EventMessageStart        EventType = "message_start"
	EventAssistantDelta      EventType = "assistant_delta"
	EventAssistantMessage    EventType = "assistant_message"
	EventToolCallStart       EventType = "tool_call_start"
	EventToolCallEnd         EventType = "tool_call_end"
	EventSubtaskStart        EventType = "subkani_task_start"
	EventSubtaskEnd          EventType = "subkani_task_end"
	EventSubtaskRetry        EventType = "subkani_task_retry"
	EventSubtaskToolCallStart EventType = "subkani_tool_call_start"
	EventSubtaskToolCallEnd   EventType = "subkani_tool_call_end"
	EventStrategyUpdate      EventType = "strategy_update"
	EventGraphSnapshot       EventType = "graph_snapshot"
	EventGraphPlan           EventType = "graph_plan"
	EventMessageEnd          EventType = "message_end"
	EventError               EventType = "error"
)

// Event is the interface every concrete event implements, mirroring the
// teacher's runtime/agent/stream.Event: a type tag plus an opaque payload.
// A single Base struct implements it for every event type.
type Event interface {
	Type() EventType
	Data() map[string]any
}

// Base carries the fields every event shares.
type Base struct {
	EventType EventType
	Payload   map[string]any
}

func (b Base) Type() EventType      { return b.EventType }
func (b Base) Data() map[string]any { return b.Payload }

// NewEvent constructs a Base-backed event of the given type with the given
// payload. Concrete call sites use the helpers below for documentation value
// and to keep payload shapes consistent; NewEvent itself stays generic so
// new event kinds don't require new types.
func NewEvent(t EventType, data map[string]any) Event {
	if data == nil {
		data = map[string]any{}
	}
	return Base{EventType: t, Payload: data}
}

func MessageStart(data map[string]any) Event { return NewEvent(EventMessageStart, data) }
func MessageEnd() Event                      { return NewEvent(EventMessageEnd, nil) }
func ErrorEvent(message string) Event {
	return NewEvent(EventError, map[string]any{"error": message})
}

func AssistantDelta(messageID, delta string) Event {
	return NewEvent(EventAssistantDelta, map[string]any{"messageId": messageID, "delta": delta})
}

func AssistantMessage(messageID, content string) Event {
	return NewEvent(EventAssistantMessage, map[string]any{"messageId": messageID, "content": content})
}

func ToolCallStart(id, name string, arguments string) Event {
	return NewEvent(EventToolCallStart, map[string]any{"id": id, "name": name, "arguments": arguments})
}

func ToolCallEnd(id, result string) Event {
	return NewEvent(EventToolCallEnd, map[string]any{"id": id, "result": result})
}

func SubtaskStart(task string) Event {
	return NewEvent(EventSubtaskStart, map[string]any{"task": task})
}

func SubtaskEnd(status string) Event {
	return NewEvent(EventSubtaskEnd, map[string]any{"status": status})
}

func SubtaskRetry(attempt int) Event {
	return NewEvent(EventSubtaskRetry, map[string]any{"attempt": attempt})
}

func StrategyUpdate(data map[string]any) Event {
	return NewEvent(EventStrategyUpdate, data)
}

func GraphSnapshot(data map[string]any) Event {
	return NewEvent(EventGraphSnapshot, data)
}

func GraphPlan(data map[string]any) Event {
	return NewEvent(EventGraphPlan, data)
}

// Emitter is the sink every producer pushes events onto. It is implemented
// by *eventbus.Bus; defined here so compiler-adjacent packages (subtask,
// combine, scheduler) can depend on the core package instead of importing
// eventbus directly and creating an import cycle.
type Emitter interface {
	Emit(e Event) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(e Event) error

func (f EmitterFunc) Emit(e Event) error { return f(e) }
