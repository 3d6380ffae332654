package agent

// EventType labels one NDJSON stream event.
type EventType string

const (
	// EventThoughtChunk is a fragment of the model's visible reasoning.
	EventThoughtChunk EventType = "thought_chunk"
	// EventToolInvocation announces a tool call before it runs.
	EventToolInvocation EventType = "tool_invocation"
	// EventObservation carries a tool's output back to the client.
	EventObservation EventType = "observation"
	// EventAnswerChunk is a fragment of the final answer, streamed live.
	EventAnswerChunk EventType = "answer_chunk"
	// EventFinalAnswer is the complete answer, emitted once at the end.
	EventFinalAnswer EventType = "final_answer"
	// EventError terminates the stream.
	EventError EventType = "error"
)

// StreamEvent is one line of the agent's NDJSON output.
type StreamEvent struct {
	Type      EventType `json:"type"`
	Content   string    `json:"content"`
	Tool      string    `json:"tool,omitempty"`
	ToolInput string    `json:"tool_input,omitempty"`
}
