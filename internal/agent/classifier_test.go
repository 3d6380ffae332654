package agent

import (
	"strings"
	"testing"
)

func collectTokens(c *StreamClassifier, tokens ...string) []StreamEvent {
	var events []StreamEvent
	for _, tok := range tokens {
		events = append(events, c.OnToken(tok)...)
	}
	return events
}

func assertNoRawMarkers(t *testing.T, events []StreamEvent) {
	t.Helper()
	for _, ev := range events {
		if ev.Type == EventAnswerChunk || ev.Type == EventFinalAnswer {
			continue // answer text may legitimately mention anything
		}
		if strings.Contains(ev.Content, "Final Answer") || strings.Contains(ev.Content, "Thought:") {
			t.Errorf("event %s leaked a marker: %q", ev.Type, ev.Content)
		}
	}
}

func TestClassifier_FinalAnswerWithColonSplit(t *testing.T) {
	c := NewStreamClassifier()

	events := collectTokens(c, "I think. ", "Final Answer: 42")
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %v", events)
	}
	if events[0].Type != EventThoughtChunk || events[0].Content != "I think." {
		t.Errorf("unexpected thought event %+v", events[0])
	}
	if events[1].Type != EventAnswerChunk || events[1].Content != " 42" {
		t.Errorf("unexpected answer event %+v", events[1])
	}

	// Everything after the marker streams straight through.
	more := c.OnToken(" and more")
	if len(more) != 1 || more[0].Type != EventAnswerChunk || more[0].Content != " and more" {
		t.Errorf("expected pass-through answer chunk, got %v", more)
	}
	assertNoRawMarkers(t, events)
}

func TestClassifier_ColonMarkerPreferredOverBare(t *testing.T) {
	c := NewStreamClassifier()

	// With both forms present in the buffer, the colon variant wins the
	// split, so no stray colon leaks into the answer.
	events := collectTokens(c, "Done. Final Answer: yes")
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %v", events)
	}
	if events[1].Content != " yes" {
		t.Errorf("expected answer ' yes', got %q", events[1].Content)
	}
}

func TestClassifier_ActionSuppressed(t *testing.T) {
	c := NewStreamClassifier()

	events := collectTokens(c, "Let me search. ", "Action: tool stuff")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %v", events)
	}
	if events[0].Type != EventThoughtChunk || events[0].Content != "Let me search." {
		t.Errorf("unexpected event %+v", events[0])
	}

	// Tokens during the action phase are dropped.
	if dropped := c.OnToken("search_knowledge(query)"); len(dropped) != 0 {
		t.Errorf("expected suppressed tokens, got %v", dropped)
	}

	// Tool end restores streaming.
	obs := c.OnToolEnd(searchToolName, "some result")
	if len(obs) != 1 || obs[0].Type != EventObservation || obs[0].Content != "some result" {
		t.Errorf("unexpected observation %v", obs)
	}
	after := c.OnToken("Based on the search results, ...")
	if len(after) != 1 || after[0].Type != EventThoughtChunk {
		t.Errorf("expected thinking to resume, got %v", after)
	}
}

func TestClassifier_FlushKeepsTail(t *testing.T) {
	c := NewStreamClassifier()

	token := "abcdefghijklmnopqrstuvwxyz0123" // 30 chars
	events := c.OnToken(token)
	if len(events) != 1 {
		t.Fatalf("expected 1 flush event, got %v", events)
	}
	if events[0].Content != "abcdefghijklmno" {
		t.Errorf("expected first 15 chars flushed, got %q", events[0].Content)
	}
	if c.buffer != "pqrstuvwxyz0123" {
		t.Errorf("expected 15-char tail retained, got %q", c.buffer)
	}
}

func TestClassifier_MarkerSplitAcrossFlushBoundary(t *testing.T) {
	c := NewStreamClassifier()

	// The retained tail keeps a partially received marker out of the
	// thought stream.
	var events []StreamEvent
	events = append(events, c.OnToken("The computation is done now. Final A")...)
	events = append(events, c.OnToken("nswer: 7")...)

	var answer strings.Builder
	for _, ev := range events {
		if ev.Type == EventThoughtChunk && strings.Contains(ev.Content, "Final") {
			t.Errorf("marker fragment leaked into thought: %q", ev.Content)
		}
		if ev.Type == EventAnswerChunk {
			answer.WriteString(ev.Content)
		}
	}
	if strings.TrimSpace(answer.String()) != "7" {
		t.Errorf("expected answer '7', got %q", answer.String())
	}
}

func TestClassifier_ThoughtLabelStripped(t *testing.T) {
	c := NewStreamClassifier()

	events := collectTokens(c, "Thought: I should look this up first carefully")
	if len(events) == 0 {
		t.Fatalf("expected a flushed thought")
	}
	for _, ev := range events {
		if strings.Contains(ev.Content, "Thought") {
			t.Errorf("label not stripped: %q", ev.Content)
		}
	}
}

func TestClassifier_ToolStartFlushesThought(t *testing.T) {
	c := NewStreamClassifier()
	c.OnToken("Searching now")

	events := c.OnToolStart(searchToolName, `{"query":"solvents"}`)
	if len(events) != 2 {
		t.Fatalf("expected thought + invocation, got %v", events)
	}
	if events[0].Type != EventThoughtChunk || events[0].Content != "Searching now" {
		t.Errorf("unexpected flush event %+v", events[0])
	}
	if events[1].Type != EventToolInvocation {
		t.Errorf("expected tool_invocation, got %+v", events[1])
	}
	if events[1].Tool != searchToolName || events[1].ToolInput != `{"query":"solvents"}` {
		t.Errorf("unexpected tool fields %+v", events[1])
	}
	if events[1].Content != "Using search_knowledge..." {
		t.Errorf("unexpected invocation content %q", events[1].Content)
	}
}

func TestClassifier_ToolEndEmptyOutput(t *testing.T) {
	c := NewStreamClassifier()
	events := c.OnToolEnd(searchToolName, "   ")
	if len(events) != 1 || events[0].Content != "No result" {
		t.Errorf("expected 'No result' fallback, got %v", events)
	}
}

func TestClassifier_FinishFlushesResidualThought(t *testing.T) {
	c := NewStreamClassifier()
	c.OnToken("short thought")

	events := c.OnFinish("Final Answer: the result is 9")
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %v", events)
	}
	if events[0].Type != EventThoughtChunk || events[0].Content != "short thought" {
		t.Errorf("unexpected residual thought %+v", events[0])
	}
	if events[1].Type != EventFinalAnswer || events[1].Content != "the result is 9" {
		t.Errorf("expected stripped final answer, got %+v", events[1])
	}
}

func TestClassifier_FinishDoesNotLeakBufferedMarker(t *testing.T) {
	c := NewStreamClassifier()
	c.OnToken("Final Answe") // incomplete marker still buffered

	events := c.OnFinish("Final Answer: ok")
	if len(events) != 1 {
		t.Fatalf("expected only final_answer, got %v", events)
	}
	if events[0].Type != EventFinalAnswer || events[0].Content != "ok" {
		t.Errorf("unexpected event %+v", events[0])
	}
}

func TestClassifier_FullToolRoundTrip(t *testing.T) {
	c := NewStreamClassifier()
	var events []StreamEvent

	events = append(events, collectTokens(c, "I will first search for knowledge about dilution. ")...)
	events = append(events, c.OnToken("Action")...)
	events = append(events, c.OnToken(": search_knowledge")...)
	events = append(events, c.OnToolStart(searchToolName, `{"query":"dilution"}`)...)
	events = append(events, c.OnToolEnd(searchToolName, "Dilution formula: C1V1 = C2V2")...)
	events = append(events, collectTokens(c, "Based on the formula, ", "Final Answer: add 357 ml of water.")...)
	events = append(events, c.OnFinish("Final Answer: add 357 ml of water.")...)

	var types []EventType
	for _, ev := range events {
		types = append(types, ev.Type)
	}

	want := []EventType{
		EventThoughtChunk,   // over-threshold flush
		EventThoughtChunk,   // remainder flushed by the Action marker
		EventToolInvocation, // tool announced
		EventObservation,    // tool result
		EventThoughtChunk,   // over-threshold flush
		EventThoughtChunk,   // remainder flushed by the Final Answer marker
		EventAnswerChunk,    // streamed answer
		EventFinalAnswer,    // authoritative answer
	}
	if len(types) != len(want) {
		t.Fatalf("expected %d events %v, got %v (%v)", len(want), want, types, events)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], types[i])
		}
	}

	if events[len(events)-1].Content != "add 357 ml of water." {
		t.Errorf("unexpected final answer %q", events[len(events)-1].Content)
	}
	assertNoRawMarkers(t, events)
}

func TestBuildInput_WithHistory(t *testing.T) {
	got := buildInput("next question", []Exchange{
		{Question: "q1", Answer: "a1"},
		{Question: "q2", Answer: "a2"},
	})
	if !strings.Contains(got, "Q: q1\nA: a1") || !strings.Contains(got, "Q: q2\nA: a2") {
		t.Errorf("history missing from input: %q", got)
	}
	if !strings.Contains(got, "Current question: next question") {
		t.Errorf("current question missing: %q", got)
	}
}
