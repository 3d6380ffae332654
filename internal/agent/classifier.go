package agent

import (
	"fmt"
	"strings"
)

type classifierState int

const (
	stateThinking classifierState = iota
	stateInAction
	stateInFinalAnswer
)

const (
	markerAction     = "Action"
	markerFinal      = "Final Answer"
	markerFinalColon = "Final Answer:"

	// Tokens are buffered until the buffer exceeds flushThreshold; the last
	// tailKeep characters are retained so a marker split across tokens
	// ("Final A" + "nswer") is never flushed as thought by mistake.
	flushThreshold = 20
	tailKeep       = 15
)

// StreamClassifier routes raw model tokens into typed events. It is a small
// state machine: THINKING buffers and scans for markers, IN_ACTION swallows
// tool-call syntax, IN_FINAL_ANSWER passes tokens through as answer chunks.
type StreamClassifier struct {
	state  classifierState
	buffer string
}

func NewStreamClassifier() *StreamClassifier {
	return &StreamClassifier{state: stateThinking}
}

// OnToken consumes one content token and returns the events it produced.
func (c *StreamClassifier) OnToken(token string) []StreamEvent {
	switch c.state {
	case stateInFinalAnswer:
		if token == "" {
			return nil
		}
		return []StreamEvent{{Type: EventAnswerChunk, Content: token}}
	case stateInAction:
		// Tool-call syntax stays hidden from the client.
		return nil
	}

	c.buffer += token

	if strings.Contains(c.buffer, markerFinal) {
		marker := markerFinal
		if strings.Contains(c.buffer, markerFinalColon) {
			marker = markerFinalColon
		}
		parts := strings.SplitN(c.buffer, marker, 2)

		var events []StreamEvent
		if thought := stripThoughtLabel(parts[0]); thought != "" {
			events = append(events, StreamEvent{Type: EventThoughtChunk, Content: thought})
		}
		if len(parts) > 1 && parts[1] != "" {
			events = append(events, StreamEvent{Type: EventAnswerChunk, Content: parts[1]})
		}
		c.state = stateInFinalAnswer
		c.buffer = ""
		return events
	}

	if idx := strings.Index(c.buffer, markerAction); idx >= 0 {
		var events []StreamEvent
		if thought := stripThoughtLabel(c.buffer[:idx]); thought != "" {
			events = append(events, StreamEvent{Type: EventThoughtChunk, Content: thought})
		}
		c.state = stateInAction
		c.buffer = ""
		return events
	}

	if len(c.buffer) > flushThreshold {
		toSend := c.buffer[:len(c.buffer)-tailKeep]
		c.buffer = c.buffer[len(c.buffer)-tailKeep:]
		if clean := stripThoughtLabel(toSend); clean != "" {
			return []StreamEvent{{Type: EventThoughtChunk, Content: clean}}
		}
	}
	return nil
}

// OnToolStart flushes any pending thought and announces the call.
func (c *StreamClassifier) OnToolStart(tool, input string) []StreamEvent {
	var events []StreamEvent
	if c.state != stateInAction {
		if thought := stripThoughtLabel(c.buffer); thought != "" {
			events = append(events, StreamEvent{Type: EventThoughtChunk, Content: thought})
		}
	}
	c.buffer = ""
	events = append(events, StreamEvent{
		Type:      EventToolInvocation,
		Content:   fmt.Sprintf("Using %s...", tool),
		Tool:      tool,
		ToolInput: input,
	})
	return events
}

// OnToolEnd reports the tool result and returns the machine to THINKING.
func (c *StreamClassifier) OnToolEnd(tool, output string) []StreamEvent {
	c.state = stateThinking
	c.buffer = ""
	if strings.TrimSpace(output) == "" {
		output = "No result"
	}
	return []StreamEvent{{Type: EventObservation, Content: output, Tool: tool}}
}

// OnFinish flushes any residual thought and emits the authoritative answer,
// markers stripped. output is the runtime's final assistant content.
func (c *StreamClassifier) OnFinish(output string) []StreamEvent {
	var events []StreamEvent
	if c.state == stateThinking && c.buffer != "" && !strings.Contains(c.buffer, markerFinal) {
		if thought := stripThoughtLabel(c.buffer); thought != "" {
			events = append(events, StreamEvent{Type: EventThoughtChunk, Content: thought})
		}
	}
	c.buffer = ""
	events = append(events, StreamEvent{
		Type:    EventFinalAnswer,
		Content: stripAnswerMarkers(output),
	})
	return events
}

func stripThoughtLabel(s string) string {
	s = strings.ReplaceAll(s, "Thought:", "")
	s = strings.ReplaceAll(s, "Thought", "")
	return strings.TrimSpace(s)
}

func stripAnswerMarkers(s string) string {
	s = strings.ReplaceAll(s, markerFinalColon, "")
	s = strings.ReplaceAll(s, markerFinal, "")
	return strings.TrimSpace(s)
}
