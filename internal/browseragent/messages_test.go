package browseragent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browseragent/internal/llm"
)

func testSummary() *BrowserStateSummary {
	return &BrowserStateSummary{
		URL:   "https://example.com/login",
		Title: "Sign in",
		Tabs:  []Tab{{ID: 0, URL: "https://example.com/login", Active: true}},
		SelectorMap: map[int]*DOMHistoryElement{
			0: {HighlightIndex: 0, TagName: "input", Attributes: map[string]string{"id": "user", "type": "text"}, BranchPathHash: "a"},
			1: {HighlightIndex: 1, TagName: "button", Attributes: map[string]string{"id": "submit", "class": "btn"}, BranchPathHash: "b"},
		},
	}
}

func newTestManager(mutate func(*AgentSettings)) *MessageManager {
	settings := DefaultAgentSettings()
	if mutate != nil {
		mutate(&settings)
	}
	return NewMessageManager("log in", "You are a browser agent.", "test-model", settings, nil)
}

// tokenInvariant asserts P2: the running count always equals the sum of
// per-message estimates.
func tokenInvariant(t *testing.T, m *MessageManager) {
	t.Helper()
	total := 0
	for _, msg := range m.State().Messages {
		total += m.estimate(msg)
	}
	assert.Equal(t, total, m.State().CurrentTokens)
}

func TestStateMessageContents(t *testing.T) {
	m := newTestManager(nil)
	m.AddStateMessage(testSummary(), []ActionResult{{Success: false, Error: "click failed"}}, StepInfo{StepNumber: 2, MaxSteps: 10}, false)

	msgs := m.GetMessages()
	require.Len(t, msgs, 2)
	text := msgs[1].Parts[0].Text
	assert.Contains(t, text, "Task: log in")
	assert.Contains(t, text, "Current URL: https://example.com/login")
	assert.Contains(t, text, "Page title: Sign in")
	assert.Contains(t, text, `Index: 0, Tag: input id="user" type="text"`)
	assert.Contains(t, text, `Index: 1, Tag: button id="submit"`)
	assert.NotContains(t, text, "class=") // not in include_attributes
	assert.Contains(t, text, "Last action failed: click failed")
	assert.Contains(t, text, "Step 3 of 10.")
	tokenInvariant(t, m)
}

func TestStateMessageAttachesScreenshotWhenVision(t *testing.T) {
	m := newTestManager(nil)
	s := testSummary()
	s.Screenshot = "aGVsbG8="
	m.AddStateMessage(s, nil, StepInfo{StepNumber: 0, MaxSteps: 5}, true)

	msgs := m.GetMessages()
	parts := msgs[1].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "image", parts[1].Kind)
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", parts[1].ImageURL)
	tokenInvariant(t, m)
}

func TestRemoveLastStateMessage(t *testing.T) {
	m := newTestManager(nil)
	m.AddStateMessage(testSummary(), nil, StepInfo{StepNumber: 0, MaxSteps: 5}, false)
	before := m.State().CurrentTokens
	m.RemoveLastStateMessage()
	require.Len(t, m.GetMessages(), 1)
	assert.Less(t, m.State().CurrentTokens, before)
	tokenInvariant(t, m)

	// Removing again must not touch the system message (P3).
	m.RemoveLastStateMessage()
	require.Len(t, m.GetMessages(), 1)
	assert.Equal(t, "system", m.GetMessages()[0].Role)
}

func TestCutMessagesNeverEvictsSystem(t *testing.T) {
	m := newTestManager(func(s *AgentSettings) { s.MaxInputTokens = 50 })
	for i := 0; i < 20; i++ {
		m.append(ChatMessage{Role: "user", Parts: []MessagePart{{Kind: "text",
			Text: fmt.Sprintf("filler message number %d with some padding text", i)}}})
	}
	m.CutMessages()

	msgs := m.GetMessages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, "system", msgs[0].Role)
	assert.LessOrEqual(t, m.State().CurrentTokens, 50+m.estimate(msgs[0]))
	tokenInvariant(t, m)
}

func TestAddPlanPositions(t *testing.T) {
	m := newTestManager(nil)
	m.AddPlan("navigate then extract", -1)
	msgs := m.GetMessages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Parts[0].Text, "Plan: navigate then extract")

	m.AddPlan("inserted first", 1)
	msgs = m.GetMessages()
	assert.Contains(t, msgs[1].Parts[0].Text, "inserted first")
	tokenInvariant(t, m)
}

func TestAddNewTaskUpdatesTaskReminder(t *testing.T) {
	m := newTestManager(nil)
	m.AddNewTask("buy a train ticket")
	m.AddStateMessage(testSummary(), nil, StepInfo{StepNumber: 0, MaxSteps: 5}, false)

	msgs := m.GetMessages()
	assert.Contains(t, msgs[1].Parts[0].Text, "New task: buy a train ticket")
	assert.Contains(t, msgs[2].Parts[0].Text, "Task: buy a train ticket")
	tokenInvariant(t, m)
}

func TestSensitiveDataScopedToDomain(t *testing.T) {
	m := newTestManager(func(s *AgentSettings) {
		s.SensitiveData = []SensitiveDataEntry{
			{DomainPattern: "example.com", Values: map[string]string{"username": "alice"}},
			{DomainPattern: "*.bank.test", Values: map[string]string{"pin": "1234"}},
		}
	})

	m.AddSensitiveData("https://other.test/home")
	require.Len(t, m.GetMessages(), 1, "no injection for unmatched domain")

	m.AddSensitiveData("https://example.com/login")
	msgs := m.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[1].Role)
	assert.Contains(t, msgs[1].Parts[0].Text, "username=alice")
	assert.NotContains(t, msgs[1].Parts[0].Text, "pin=1234")

	m.RemoveLastCredentialsMessage()
	require.Len(t, m.GetMessages(), 1)

	m.AddSensitiveData("https://login.bank.test/auth")
	msgs = m.GetMessages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Parts[0].Text, "pin=1234")
	tokenInvariant(t, m)
}

func TestAvailableActionsEmbeddedInStateTurn(t *testing.T) {
	m := newTestManager(nil)
	m.SetAvailableActions("- goto: Navigate to a URL.\n")
	m.AddStateMessage(testSummary(), nil, StepInfo{StepNumber: 0, MaxSteps: 5}, false)
	assert.Contains(t, m.GetMessages()[1].Parts[0].Text, "Available actions:\n- goto")
}

func TestContextWindowDefaultFromModel(t *testing.T) {
	settings := DefaultAgentSettings()
	settings.MaxInputTokens = 0
	m := NewMessageManager("t", "sys", "gpt-4o-mini", settings, nil)
	expected, known := llm.ContextSize("gpt-4o-mini")
	require.True(t, known)
	assert.Equal(t, expected, m.settings.MaxInputTokens)
}
