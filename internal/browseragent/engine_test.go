package browseragent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browseragent/internal/llm"
)

func TestHappyPathSingleAction(t *testing.T) {
	browser := newFakeBrowser()
	provider := &fakeProvider{responses: []llm.Message{
		rawOut(`[{"goto":{"url":"https://example.com"}}]`),
		rawOut(`[{"done":{"success":true,"text":"Example Domain"}}]`),
	}}
	agent := newTestAgent("open example.com and report its title", browser, provider, nil)

	history, err := agent.Run(context.Background(), 10, nil, nil, nil)
	require.NoError(t, err)

	assert.Len(t, history.History, 2)
	assert.True(t, history.IsDone())
	assert.True(t, history.IsSuccessful())
	assert.Equal(t, "Example Domain", history.FinalResult())
	assert.Empty(t, history.Errors())
	assert.Equal(t, 2, agent.State.NSteps())
	assert.Contains(t, browser.recorded(), "navigate:https://example.com")
	assert.True(t, browser.closed)
}

func TestEmptyActionRetry(t *testing.T) {
	browser := newFakeBrowser()
	provider := &fakeProvider{responses: []llm.Message{
		rawOut(`[]`),
		rawOut(`[{"goto":{"url":"https://example.com"}}]`),
		rawOut(`[{"done":{"success":true,"text":"ok"}}]`),
	}}
	agent := newTestAgent("task", browser, provider, nil)

	history, err := agent.Run(context.Background(), 10, nil, nil, nil)
	require.NoError(t, err)

	// First step needed two model calls: the empty reply plus the retry
	// carrying exactly one clarification turn.
	require.GreaterOrEqual(t, provider.callCount(), 2)
	retryMsgs := provider.messagesOfCall(1)
	require.NotEmpty(t, retryMsgs)
	assert.Contains(t, retryMsgs[len(retryMsgs)-1].Content, "You returned no action")

	assert.Equal(t, 2, agent.State.NSteps())
	assert.Equal(t, 0, agent.State.ConsecutiveFailures())
	assert.True(t, history.IsSuccessful())
}

func TestParseFailureEscalation(t *testing.T) {
	browser := newFakeBrowser()
	provider := &fakeProvider{responses: []llm.Message{
		{Role: "assistant", Content: "definitely not json"},
	}}
	agent := newTestAgent("task", browser, provider, func(s *AgentSettings) {
		s.MaxFailures = 3
	})

	history, err := agent.Run(context.Background(), 10, nil, nil, nil)
	require.NoError(t, err)

	require.Len(t, history.History, 4)
	for i := 0; i < 3; i++ {
		require.Len(t, history.History[i].Result, 1)
		assert.Contains(t, history.History[i].Result[0].Error, "parse agent output")
	}
	assert.Equal(t, 3, agent.State.ConsecutiveFailures())
	last := history.History[3].Result[0]
	assert.Equal(t, "Stopped due to 3 consecutive failures", last.Error)
	assert.False(t, history.IsSuccessful())
}

// registerIndexActions overwrites click/type with index-addressed variants so
// tests can exercise the element-targeting path the drift guard watches.
func registerIndexActions(t *testing.T, agent *Agent, dispatched *[]int) {
	t.Helper()
	reg := agent.Controller.Registry()
	record := func(params map[string]any) {
		if v, ok := params["index"]; ok {
			switch n := v.(type) {
			case int:
				*dispatched = append(*dispatched, n)
			case float64:
				*dispatched = append(*dispatched, int(n))
			}
		}
	}
	require.NoError(t, reg.Register(&ActionDefinition{
		Name: "click", Description: "Click the element at an index.",
		Parameters: map[string]*ActionParameter{
			"index": {Type: TypeNumber, Required: true, Description: "Element index."},
		},
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			record(params)
			return nil, nil
		},
	}, true))
	require.NoError(t, reg.Register(&ActionDefinition{
		Name: "type", Description: "Type into the element at an index.",
		Parameters: map[string]*ActionParameter{
			"index": {Type: TypeNumber, Required: true, Description: "Element index."},
			"text":  {Type: TypeString, Required: true, Description: "Text to type."},
		},
		Execute: func(ctx ExecContext, params map[string]any) (any, error) {
			record(params)
			return nil, nil
		},
	}, true))
}

func TestDOMDriftAbortsBatch(t *testing.T) {
	el5 := &DOMHistoryElement{HighlightIndex: 5, TagName: "button", BranchPathHash: "hash-5"}
	el7 := &DOMHistoryElement{HighlightIndex: 7, TagName: "input", BranchPathHash: "hash-7"}
	el7Changed := &DOMHistoryElement{HighlightIndex: 7, TagName: "input", BranchPathHash: "hash-7-changed"}

	before := &BrowserStateSummary{URL: "https://example.com", SelectorMap: map[int]*DOMHistoryElement{5: el5, 7: el7}}
	after := &BrowserStateSummary{URL: "https://example.com", SelectorMap: map[int]*DOMHistoryElement{5: el5, 7: el7Changed}}

	browser := newFakeBrowser(before, after)
	provider := &fakeProvider{}
	agent := newTestAgent("task", browser, provider, nil)

	var dispatched []int
	registerIndexActions(t, agent, &dispatched)

	actions := []ActionModel{
		{Name: "click", Params: map[string]any{"index": 5}},
		{Name: "type", Params: map[string]any{"index": 7, "text": "x"}},
	}
	results, err := agent.multiAct(context.Background(), actions, true)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "changed after previous action")
	assert.Equal(t, []int{5}, dispatched)
}

func TestPauseMidStepAndResume(t *testing.T) {
	browser := newFakeBrowser()
	provider := &fakeProvider{responses: []llm.Message{
		rawOut(`[{"goto":{"url":"https://example.com"}}]`),
		rawOut(`[{"done":{"success":true,"text":"finished"}}]`),
	}}
	agent := newTestAgent("task", browser, provider, nil)
	provider.onCall = func(call int) {
		if call == 0 {
			agent.State.Pause()
		}
	}

	type runResult struct {
		history *AgentHistoryList
		err     error
	}
	ch := make(chan runResult, 1)
	go func() {
		h, err := agent.Run(context.Background(), 10, nil, nil, nil)
		ch <- runResult{h, err}
	}()

	require.Eventually(t, func() bool {
		results := agent.State.LastResults()
		return len(results) == 1 && results[0].Error == "paused mid-step"
	}, 2*time.Second, 5*time.Millisecond)

	// The interrupted step left no history entry and consumed no failure
	// budget.
	assert.Equal(t, 0, agent.State.ConsecutiveFailures())
	assert.Empty(t, agent.State.History().History)

	agent.State.Resume()

	select {
	case res := <-ch:
		require.NoError(t, res.err)
		assert.True(t, res.history.IsSuccessful())
		assert.Equal(t, "finished", res.history.FinalResult())
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish after resume")
	}
}

func TestReplayRemapsMovedElement(t *testing.T) {
	historical := &DOMHistoryElement{HighlightIndex: 4, TagName: "button", BranchPathHash: "stable-hash"}
	current := &BrowserStateSummary{
		URL:         "https://example.com",
		SelectorMap: map[int]*DOMHistoryElement{9: {HighlightIndex: 9, TagName: "button", BranchPathHash: "stable-hash"}},
	}
	browser := newFakeBrowser(current)
	provider := &fakeProvider{}
	agent := newTestAgent("task", browser, provider, nil)

	var dispatched []int
	registerIndexActions(t, agent, &dispatched)

	saved := &AgentHistoryList{History: []AgentHistory{{
		ModelOutput: &AgentOutput{Action: []ActionModel{{Name: "click", Params: map[string]any{"index": 4}}}},
		Result:      []ActionResult{{Success: true, ActionName: "click"}},
		State:       BrowserStateHistory{InteractedElement: []*DOMHistoryElement{historical}},
	}}}

	results, err := agent.RerunHistory(context.Background(), saved, 3, false, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, []int{9}, dispatched)
}

func TestReplayMissingElementAborts(t *testing.T) {
	browser := newFakeBrowser(&BrowserStateSummary{SelectorMap: map[int]*DOMHistoryElement{}})
	agent := newTestAgent("task", browser, &fakeProvider{}, nil)

	var dispatched []int
	registerIndexActions(t, agent, &dispatched)

	saved := &AgentHistoryList{History: []AgentHistory{{
		ModelOutput: &AgentOutput{Action: []ActionModel{{Name: "click", Params: map[string]any{"index": 4}}}},
		State: BrowserStateHistory{InteractedElement: []*DOMHistoryElement{
			{HighlightIndex: 4, BranchPathHash: "gone"},
		}},
	}}}

	_, err := agent.RerunHistory(context.Background(), saved, 2, false, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not find matching element")
	assert.Empty(t, dispatched)
}

func TestStopBeforeRunRecordsTerminalEntry(t *testing.T) {
	browser := newFakeBrowser()
	agent := newTestAgent("task", browser, &fakeProvider{}, nil)
	agent.State.Stop()

	history, err := agent.Run(context.Background(), 10, nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, history.History, 1)
	assert.Equal(t, "stopped programmatically", history.History[0].Result[0].Error)
}

func TestMaxStepsReached(t *testing.T) {
	browser := newFakeBrowser()
	provider := &fakeProvider{responses: []llm.Message{
		rawOut(`[{"goto":{"url":"https://example.com"}}]`),
	}}
	agent := newTestAgent("task", browser, provider, nil)

	history, err := agent.Run(context.Background(), 2, nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, history.History, 3)
	assert.Equal(t, "max_steps_reached", history.History[2].Result[0].Error)
	assert.False(t, history.IsSuccessful())
}

func TestLastStepForcesDoneDirective(t *testing.T) {
	browser := newFakeBrowser()
	provider := &fakeProvider{responses: []llm.Message{
		rawOut(`[{"done":{"success":false,"text":"out of budget"}}]`),
	}}
	agent := newTestAgent("task", browser, provider, nil)

	history, err := agent.Run(context.Background(), 1, nil, nil, nil)
	require.NoError(t, err)

	msgs := provider.messagesOfCall(0)
	require.NotEmpty(t, msgs)
	found := false
	for _, m := range msgs {
		if m.Role == "system" && strings.Contains(m.Content, "last step") {
			found = true
		}
	}
	assert.True(t, found, "expected a last-step directive in the prompt")
	assert.True(t, history.IsDone())
}

func TestEventOrdering(t *testing.T) {
	browser := newFakeBrowser()
	provider := &fakeProvider{responses: []llm.Message{
		rawOut(`[{"done":{"success":true,"text":"ok"}}]`),
	}}
	agent := newTestAgent("task", browser, provider, nil)
	events := agent.Bus.Subscribe()

	_, err := agent.Run(context.Background(), 5, nil, nil, nil)
	require.NoError(t, err)

	var kinds []EventKind
	for {
		select {
		case ev := <-events:
			kinds = append(kinds, ev.Kind)
			continue
		default:
		}
		break
	}
	require.GreaterOrEqual(t, len(kinds), 4)
	assert.Equal(t, EventSessionCreated, kinds[0])
	assert.Equal(t, EventTaskCreated, kinds[1])
	assert.Equal(t, EventStepCreated, kinds[2])
	assert.Equal(t, EventTaskUpdated, kinds[len(kinds)-1])
}

func TestSensitiveDataRebuiltNotAccumulated(t *testing.T) {
	browser := newFakeBrowser()
	provider := &fakeProvider{responses: []llm.Message{
		rawOut(`[{"goto":{"url":"https://example.com"}}]`),
		rawOut(`[{"goto":{"url":"https://example.com"}}]`),
		rawOut(`[{"done":{"success":true,"text":"ok"}}]`),
	}}
	agent := newTestAgent("task", browser, provider, func(s *AgentSettings) {
		s.SensitiveData = []SensitiveDataEntry{
			{DomainPattern: "example.com", Values: map[string]string{"username": "alice"}},
		}
		s.AllowedDomains = []string{"example.com"}
	})

	countCredentials := func() int {
		n := 0
		for _, m := range agent.Messages.GetMessages() {
			if isCredentialsTurn(m) {
				n++
			}
		}
		return n
	}

	maxSeen := 0
	onStepEnd := func(step int, hist *AgentHistory) {
		if n := countCredentials(); n > maxSeen {
			maxSeen = n
		}
	}

	history, err := agent.Run(context.Background(), 10, nil, nil, onStepEnd)
	require.NoError(t, err)
	require.Len(t, history.History, 3)
	assert.True(t, history.IsSuccessful())

	// The credentials turn is rebuilt each step, never stacked: no point in
	// the run carries more than one copy.
	assert.LessOrEqual(t, maxSeen, 1)
	assert.Equal(t, 1, countCredentials())
}

func TestInitialActionsDispatchedBeforeLoop(t *testing.T) {
	browser := newFakeBrowser()
	provider := &fakeProvider{responses: []llm.Message{
		rawOut(`[{"done":{"success":true,"text":"ok"}}]`),
	}}
	agent := newTestAgent("task", browser, provider, nil)

	initial := []ActionModel{{Name: "goto", Params: map[string]any{"url": "https://start.example.com"}}}
	_, err := agent.Run(context.Background(), 5, initial, nil, nil)
	require.NoError(t, err)

	recorded := browser.recorded()
	require.NotEmpty(t, recorded)
	assert.Contains(t, recorded, "navigate:https://start.example.com")
}
