package browseragent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"browseragent/internal/observability"
)

var tracer = otel.Tracer("browseragent/agent")

var (
	meter          = otel.Meter("browseragent/agent")
	stepCounter, _ = meter.Int64Counter("agent.steps", metric.WithDescription("Steps executed across runs"))
	failCounter, _ = meter.Int64Counter("agent.failures", metric.WithDescription("Steps that recorded a failure"))
)

// Agent is the Agent Core (component I): the step loop that orchestrates
// the DOM Snapshotter, Message Manager, LLM Adapter, and Controller,
// updates AgentState, writes history, and emits events.
type Agent struct {
	Task     string
	Settings AgentSettings

	Controller *Controller
	Messages   *MessageManager
	Adapter    *LLMAdapter
	Planner    *LLMAdapter // optional
	Memory     MemoryHook  // optional
	Sync       *CloudSync  // optional

	State *AgentState
	Bus   *EventBus

	AgentID   string
	SessionID string
	TaskID    string

	// OnNewStep fires after each accepted LLM decision, before dispatch.
	OnNewStep func(output *AgentOutput)

	method      ToolCallingMethod
	forceExited bool
	exit        func(code int)
}

// NewAgent wires the Agent Core's dependencies. The caller is responsible
// for constructing the Controller (with a launched BrowserFacade), the
// MessageManager (with its system prompt already set), and the LLMAdapter.
func NewAgent(task string, settings AgentSettings, controller *Controller, messages *MessageManager, adapter *LLMAdapter) *Agent {
	a := &Agent{
		Task: task, Settings: settings,
		Controller: controller, Messages: messages, Adapter: adapter,
		State: NewAgentState(), Bus: NewEventBus(),
		AgentID:   uuid.NewString(),
		SessionID: uuid.NewString(),
		TaskID:    uuid.NewString(),
		exit:      os.Exit,
	}
	a.warnUncoveredSensitiveData()
	return a
}

// warnUncoveredSensitiveData flags credential entries that no allowed-domain
// restriction covers, since those could be injected on any page the model
// navigates to.
func (a *Agent) warnUncoveredSensitiveData() {
	if len(a.Settings.SensitiveData) == 0 {
		return
	}
	if len(a.Settings.AllowedDomains) == 0 {
		log.Warn().Msg("sensitive data configured without an allowed_domains restriction on the browser profile")
		return
	}
	for _, entry := range a.Settings.SensitiveData {
		covered := false
		for _, allowed := range a.Settings.AllowedDomains {
			if domainPatternCovered(entry.DomainPattern, allowed) {
				covered = true
				break
			}
		}
		if !covered {
			log.Warn().Str("domain", entry.DomainPattern).Msg("sensitive data domain not covered by allowed_domains")
		}
	}
}

func domainPatternCovered(pattern, allowed string) bool {
	pattern = strings.TrimPrefix(strings.ToLower(pattern), "*.")
	allowed = strings.TrimPrefix(strings.ToLower(allowed), "*.")
	return pattern == allowed || strings.HasSuffix(pattern, "."+allowed)
}

// StepHook is a caller-supplied observer invoked at a step boundary.
type StepHook func(stepNumber int, history *AgentHistory)

// Run drives the step loop to completion, exhaustion, or failure.
// initialActions, if non-empty, are dispatched via multiAct before the loop
// starts.
func (a *Agent) Run(ctx context.Context, maxSteps int, initialActions []ActionModel, onStepStart, onStepEnd StepHook) (*AgentHistoryList, error) {
	interrupt := NewInterruptHandler(a.State, a.forceExit)
	interrupt.Install()
	defer func() {
		interrupt.Uninstall()
		if !a.forceExited {
			a.emitTelemetry()
		}
		if a.Sync != nil {
			a.Sync.WaitAuthenticated(ctx)
		}
		_ = a.Controller.browser.Close(ctx)
	}()

	a.Bus.Publish(Event{Kind: EventSessionCreated, Timestamp: now(), SessionID: a.SessionID})
	a.Bus.Publish(Event{Kind: EventTaskCreated, Timestamp: now(), SessionID: a.SessionID, TaskID: a.TaskID})

	method, err := a.Adapter.SetToolCallingMethod(ctx, a.Settings.ToolCallingMethod)
	if err != nil {
		return a.State.HistoryRef(), err
	}
	a.method = method

	if len(initialActions) > 0 {
		results, actErr := a.multiAct(ctx, initialActions, true)
		if actErr != nil && actErr != ErrAgentInterrupted {
			return a.State.HistoryRef(), actErr
		}
		a.State.setLastResults(results)
	}

	for step := 0; step < maxSteps; step++ {
		a.State.WaitIfPaused()
		if a.State.ConsecutiveFailures() >= a.Settings.MaxFailures {
			a.recordTerminalFailure(fmt.Sprintf("Stopped due to %d consecutive failures", a.Settings.MaxFailures), maxSteps)
			return a.State.HistoryRef(), nil
		}
		if a.State.Stopped() {
			a.recordTerminalFailure("stopped programmatically", maxSteps)
			return a.State.HistoryRef(), nil
		}

		if onStepStart != nil {
			onStepStart(step, nil)
		}
		hist, stepErr := a.step(ctx, StepInfo{StepNumber: step, MaxSteps: maxSteps})
		if onStepEnd != nil {
			onStepEnd(step, hist)
		}
		if stepErr == ErrAgentInterrupted {
			// Recoverable: surface a paused-mid-step result and let the loop
			// park at the next WaitIfPaused checkpoint.
			a.State.setLastResults([]ActionResult{{Success: false, Error: "paused mid-step", Timestamp: now()}})
			continue
		}
		if stepErr != nil {
			return a.State.HistoryRef(), stepErr
		}
		if hist == nil || !containsDone(hist.Result) {
			continue
		}
		if a.Settings.ValidateOutput && step != maxSteps-1 {
			v, _ := a.Adapter.ValidateOutput(ctx, a.Messages.GetMessages(), a.Task)
			if v != nil && !v.IsValid {
				a.State.setLastResults([]ActionResult{{Success: false, Error: "output invalid: " + v.Reason, Timestamp: now()}})
				continue
			}
		}
		log.Info().Str("task_id", a.TaskID).Int("steps", a.State.NSteps()).Msg("task complete")
		return a.State.HistoryRef(), nil
	}

	if !a.State.HistoryRef().IsDone() {
		a.recordTerminalFailure("max_steps_reached", maxSteps)
	}
	return a.State.HistoryRef(), nil
}

func containsDone(results []ActionResult) bool {
	for _, r := range results {
		if r.IsDone {
			return true
		}
	}
	return false
}

func (a *Agent) recordTerminalFailure(reason string, maxSteps int) {
	log.Warn().Str("task_id", a.TaskID).Str("reason", reason).Msg("run terminated")
	a.State.appendHistory(AgentHistory{
		Result:   []ActionResult{{Success: false, Error: reason, Timestamp: now(), IsDone: true}},
		Metadata: StepMetadata{StepNumber: a.State.NSteps(), MaxSteps: maxSteps},
	})
}

// forceExit runs on the second interrupt while paused: flush telemetry once,
// then terminate the process with exit code 1.
func (a *Agent) forceExit() {
	a.forceExited = true
	a.emitTelemetry()
	a.exit(1)
}

func (a *Agent) emitTelemetry() {
	a.Bus.Publish(Event{Kind: EventTaskUpdated, Timestamp: now(), SessionID: a.SessionID, TaskID: a.TaskID, Payload: a.State.History()})
}

// step executes one observe -> plan -> decide -> act -> record cycle. It
// returns ErrAgentInterrupted when paused or stopped mid-step (agent state
// stays valid for resumption, no history entry is written), and otherwise
// always records exactly one history entry.
func (a *Agent) step(ctx context.Context, info StepInfo) (*AgentHistory, error) {
	ctx, span := tracer.Start(ctx, "agent.step", trace.WithAttributes(attribute.Int("step.number", info.StepNumber)))
	defer span.End()
	slog := observability.LoggerWithTrace(ctx)
	start := time.Now()

	summary, err := a.Controller.browser.GetStateSummary(ctx, true)
	if err != nil {
		return a.failStep(info, start, nil, err), nil
	}

	if a.Memory != nil && a.Memory.Interval() > 0 && info.StepNumber > 0 && info.StepNumber%a.Memory.Interval() == 0 {
		a.runMemoryHook(ctx)
	}

	if err := a.State.CheckInterrupted(); err != nil {
		return nil, err
	}

	// Credentials are rebuilt each step, never accumulated: drop the previous
	// step's turn before injecting one scoped to the current URL.
	if len(a.Settings.SensitiveData) > 0 {
		a.Messages.RemoveLastCredentialsMessage()
		a.Messages.AddSensitiveData(summary.URL)
	}

	// Raw-mode models never see tool schemas, so the catalog rides along in
	// the state turn instead.
	if a.method == MethodRaw {
		a.Messages.SetAvailableActions(a.Controller.Registry().GetPromptDescription(nil))
	}

	a.Messages.AddStateMessage(summary, a.State.LastResults(), info, a.Settings.UseVision)

	if a.Planner != nil && a.Settings.PlannerInterval > 0 && info.StepNumber%a.Settings.PlannerInterval == 0 {
		plan, perr := a.runPlanner(ctx)
		if perr != nil {
			slog.Warn().Err(perr).Msg("planner failed")
		} else if plan != "" {
			a.Messages.AddPlan(plan, -1)
		}
	}

	if info.StepNumber == info.MaxSteps-1 {
		a.Messages.append(ChatMessage{Role: "system", Parts: []MessagePart{{Kind: "text",
			Text: "This is the last step. You must respond with exactly one `done` action."}}})
	}

	msgs := a.Messages.GetMessages()
	inputTokens := a.Messages.State().CurrentTokens
	slog.Info().
		Int("step", info.StepNumber+1).
		Int("max_steps", info.MaxSteps).
		Int("input_tokens", inputTokens).
		Str("url", summary.URL).
		Msg("deciding next action")

	output, llmErr := a.Adapter.GetNextAction(ctx, msgs, a.method, a.Settings.MaxActionsPerStep, a.Controller.Registry())
	if llmErr != nil {
		a.Messages.RemoveLastStateMessage()
		return a.failStep(info, start, summary, llmErr), nil
	}
	if len(output.Action) == 0 || allActionsEmpty(output) {
		slog.Warn().Msg("model returned no action, asking for clarification")
		clarMsgs := append(append([]ChatMessage{}, msgs...), ChatMessage{Role: "user", Parts: []MessagePart{{Kind: "text",
			Text: "You returned no action. Reply with exactly one valid action from the catalog."}}})
		retryOut, retryErr := a.Adapter.GetNextAction(ctx, clarMsgs, a.method, a.Settings.MaxActionsPerStep, a.Controller.Registry())
		if retryErr == nil && retryOut != nil && len(retryOut.Action) > 0 && !allActionsEmpty(retryOut) {
			output = retryOut
		} else {
			output = &AgentOutput{Action: []ActionModel{{Name: ActionDone, Params: map[string]any{
				"success": false, "text": "No next action returned by LLM!",
			}}}}
		}
	}

	if err := a.State.CheckInterrupted(); err != nil {
		return nil, err
	}
	a.State.incrementSteps()
	if a.OnNewStep != nil {
		a.OnNewStep(output)
	}
	if a.Settings.SaveConversationPath != "" {
		a.saveConversation(msgs, output)
	}

	a.Messages.RemoveLastStateMessage()
	a.Messages.AddModelOutput(output)

	results, actErr := a.multiAct(ctx, output.Action, true)
	if actErr == ErrAgentInterrupted {
		return nil, actErr
	}

	anyFailed := false
	for _, r := range results {
		if !r.Success {
			anyFailed = true
			a.applyErrorPolicy(r.Error)
		}
	}
	if anyFailed {
		n := a.State.incrementFailures()
		failCounter.Add(ctx, 1)
		slog.Warn().Int("consecutive_failures", n).Msg("step recorded a failure")
	} else {
		a.State.resetFailures()
	}
	a.State.setLastResults(results)

	hist := a.recordStep(ctx, info, start, summary, output, results, inputTokens)
	slog.Debug().Int("step", info.StepNumber+1).Int("actions", len(results)).Msg("step complete")
	return hist, nil
}

// failStep records a failed step (snapshot, LLM, or parse error) as a history
// entry, applies the recovery policy for the error class, and bumps the
// failure streak.
func (a *Agent) failStep(info StepInfo, start time.Time, summary *BrowserStateSummary, err error) *AgentHistory {
	msg := err.Error()
	a.applyErrorPolicy(msg)
	n := a.State.incrementFailures()
	log.Error().Err(err).Int("step", info.StepNumber+1).Int("consecutive_failures", n).Msg("step failed")

	res := ActionResult{Success: false, Error: msg, Timestamp: now()}
	a.State.setLastResults([]ActionResult{res})

	hist := AgentHistory{
		Result:   []ActionResult{res},
		Metadata: stepMetadata(info, start, time.Now(), 0),
	}
	if summary != nil {
		hist.State = BrowserStateHistory{URL: summary.URL, Title: summary.Title, Tabs: summary.Tabs}
	}
	a.State.appendHistory(hist)
	a.Bus.Publish(Event{Kind: EventStepCreated, Timestamp: now(), SessionID: a.SessionID, TaskID: a.TaskID, StepIndex: info.StepNumber, Payload: hist})
	return &hist
}

// applyErrorPolicy implements the per-class recovery from the error taxonomy:
// token-limit errors shrink the conversation budget, rate limits wait out
// retry_delay, a dead browser exhausts the failure budget so the loop fails
// out on its next iteration.
func (a *Agent) applyErrorPolicy(errMsg string) {
	lower := strings.ToLower(errMsg)
	switch {
	case strings.Contains(lower, "browser closed"), strings.Contains(lower, "disconnected"):
		a.State.setFailures(a.Settings.MaxFailures)
	case strings.Contains(lower, "max token limit reached"):
		a.Messages.ReduceMaxInputTokens(500)
		a.Messages.CutMessages()
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "resource exhausted"), strings.Contains(lower, "429"):
		time.Sleep(a.Settings.RetryDelay)
	}
}

func (a *Agent) recordStep(ctx context.Context, info StepInfo, start time.Time, summary *BrowserStateSummary, output *AgentOutput, results []ActionResult, inputTokens int) *AgentHistory {
	interacted := make([]*DOMHistoryElement, 0, len(output.Action))
	for _, act := range output.Action {
		if idx, ok := act.Index(); ok {
			interacted = append(interacted, summary.SelectorMap[idx])
		} else {
			interacted = append(interacted, nil)
		}
	}
	hist := AgentHistory{
		ModelOutput: output,
		Result:      results,
		State: BrowserStateHistory{
			URL: summary.URL, Title: summary.Title, Tabs: summary.Tabs,
			InteractedElement: interacted, Screenshot: summary.Screenshot,
		},
		Metadata: stepMetadata(info, start, time.Now(), inputTokens),
	}
	a.State.appendHistory(hist)
	stepCounter.Add(ctx, 1)
	a.Bus.Publish(Event{Kind: EventStepCreated, Timestamp: now(), SessionID: a.SessionID, TaskID: a.TaskID, StepIndex: info.StepNumber, Payload: hist})
	return &hist
}

func stepMetadata(info StepInfo, start, end time.Time, inputTokens int) StepMetadata {
	return StepMetadata{
		StepNumber:    info.StepNumber,
		StepStartTime: float64(start.UnixNano()) / 1e9,
		StepEndTime:   float64(end.UnixNano()) / 1e9,
		InputTokens:   inputTokens,
		MaxSteps:      info.MaxSteps,
	}
}

func allActionsEmpty(out *AgentOutput) bool {
	for _, a := range out.Action {
		if len(a.Params) > 0 || a.Name == ActionDone {
			return false
		}
	}
	return true
}

// saveConversation writes the step's prompt and decision to
// conversation_<agent_id>_<n>.txt under SaveConversationPath.
func (a *Agent) saveConversation(msgs []ChatMessage, output *AgentOutput) {
	dir := a.Settings.SaveConversationPath
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn().Err(err).Msg("cannot create conversation directory")
		return
	}
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s]\n", m.Role)
		for _, p := range m.Parts {
			if p.Kind == "text" {
				b.WriteString(p.Text)
				b.WriteString("\n")
			} else {
				b.WriteString("<image>\n")
			}
		}
		b.WriteString("\n")
	}
	b.WriteString("=== model output ===\n")
	if data, err := json.MarshalIndent(output, "", "  "); err == nil {
		b.Write(data)
		b.WriteString("\n")
	}
	name := fmt.Sprintf("conversation_%s_%d.txt", a.AgentID, a.State.NSteps())
	if err := os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0o644); err != nil {
		log.Warn().Err(err).Msg("cannot save conversation")
	}
}

// runMemoryHook feeds the last 2*interval turns to the memory hook and, on a
// non-empty result, inserts it as a system turn. Failures are logged and
// swallowed; they never increment the failure counter.
func (a *Agent) runMemoryHook(ctx context.Context) {
	window := 2 * a.Memory.Interval()
	msgs := a.Messages.GetMessages()
	start := len(msgs) - window
	if start < 1 {
		start = 1
	}
	summary, err := a.Memory.Summarize(ctx, msgs[start:])
	if err != nil {
		log.Warn().Err(err).Msg("memory hook failed")
		return
	}
	if summary == "" {
		return
	}
	a.Messages.append(ChatMessage{Role: "system", Parts: []MessagePart{{Kind: "text", Text: "procedural_memory: " + summary}}})
}

// runPlanner invokes the planner LLM with all messages except the first
// system message, prefixed by a planner-specific system message listing the
// available actions. The planner never shares the adapter's tool-calling
// negotiation: it always returns a free-form string via a plain chat call.
func (a *Agent) runPlanner(ctx context.Context) (string, error) {
	msgs := a.Messages.GetMessages()
	if len(msgs) > 0 {
		msgs = msgs[1:]
	}
	if !a.Settings.UseVisionForPlanner && len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		filtered := make([]MessagePart, 0, len(last.Parts))
		for _, p := range last.Parts {
			if p.Kind != "image" {
				filtered = append(filtered, p)
			}
		}
		last.Parts = filtered
		msgs = append(append([]ChatMessage{}, msgs[:len(msgs)-1]...), last)
	}
	systemText := "You are the planner. Produce a short plan for the next few steps.\nAvailable actions:\n" +
		a.Controller.Registry().GetPromptDescription(nil)
	if a.Settings.ExtendPlannerSystemMessage != "" {
		systemText += "\n\n" + a.Settings.ExtendPlannerSystemMessage
	}
	plannerPrompt := ChatMessage{Role: "system", Parts: []MessagePart{{Kind: "text", Text: systemText}}}
	planMsgs := append([]ChatMessage{plannerPrompt}, msgs...)

	resp, err := a.Planner.provider.Chat(ctx, toLLMMessages(planMsgs), nil, a.Planner.model)
	if err != nil {
		return "", err
	}
	text := resp.Content
	if a.Settings.IsPlannerReasoning {
		text = stripThink(text)
	}
	text = strings.TrimSpace(text)
	if json.Valid([]byte(text)) {
		log.Debug().RawJSON("plan", []byte(text)).Msg("planner produced structured plan")
	} else {
		log.Debug().Str("plan", text).Msg("planner produced plan")
	}
	return text, nil
}

// multiAct executes actions strictly sequentially with DOM-drift guards.
// It returns ErrAgentInterrupted when a pause or stop is observed between
// actions; in that case the returned results always contain at least one
// entry.
func (a *Agent) multiAct(ctx context.Context, actions []ActionModel, checkForNewElements bool) ([]ActionResult, error) {
	summary0, err := a.Controller.browser.GetStateSummary(ctx, true)
	if err != nil {
		return []ActionResult{{Success: false, Error: err.Error(), Timestamp: now()}}, nil
	}
	h0 := map[string]bool{}
	for _, el := range summary0.SelectorMap {
		h0[el.BranchPathHash] = true
	}
	_ = a.Controller.browser.RemoveHighlights(ctx)

	var results []ActionResult
	for i, action := range actions {
		if i > 0 {
			if drift := a.checkDrift(ctx, action, summary0, h0, checkForNewElements); drift != nil {
				results = append(results, *drift)
				break
			}
		}

		if err := a.State.CheckInterrupted(); err != nil {
			if len(results) == 0 {
				results = append(results, ActionResult{Success: false, ActionName: action.Name, Error: "cancelled", Timestamp: now()})
			}
			return results, ErrAgentInterrupted
		}

		actCtx, actSpan := tracer.Start(ctx, "agent.action", trace.WithAttributes(attribute.String("action.name", action.Name)))
		res := a.Controller.ExecuteAction(actCtx, action.Name, action.Params)
		actSpan.SetAttributes(attribute.Bool("action.success", res.Success))
		actSpan.End()

		res.ActionName = action.Name
		res.Params = action.Params
		results = append(results, res)

		if res.IsDone || !res.Success || i == len(actions)-1 {
			break
		}
		time.Sleep(a.Settings.WaitBetweenActions)
	}
	return results, nil
}

// checkDrift compares the targeted element's hash against the pre-batch
// snapshot and, when enabled, looks for elements that appeared since. A
// non-nil result aborts the batch.
func (a *Agent) checkDrift(ctx context.Context, action ActionModel, summary0 *BrowserStateSummary, h0 map[string]bool, checkForNewElements bool) *ActionResult {
	idx, ok := action.Index()
	if !ok {
		return nil
	}
	summaryI, err := a.Controller.browser.GetStateSummary(ctx, false)
	if err != nil {
		return nil
	}
	t0, ok0 := summary0.SelectorMap[idx]
	ti, oki := summaryI.SelectorMap[idx]
	if ok0 && oki && t0.BranchPathHash != ti.BranchPathHash {
		return &ActionResult{
			Success: false, ActionName: action.Name, Params: action.Params,
			Error: "element changed after previous action", Timestamp: now(),
		}
	}
	if checkForNewElements {
		for _, el := range summaryI.SelectorMap {
			if !h0[el.BranchPathHash] {
				return &ActionResult{
					Success: false, ActionName: action.Name, Params: action.Params,
					Error: "something new appeared", Timestamp: now(),
				}
			}
		}
	}
	return nil
}

// RerunHistory replays a saved AgentHistoryList against the live browser,
// remapping element indices via the History Tree Matcher where the DOM has
// drifted.
func (a *Agent) RerunHistory(ctx context.Context, history *AgentHistoryList, maxRetries int, skipFailures bool, delay time.Duration) ([]ActionResult, error) {
	var all []ActionResult
	for stepIdx, h := range history.History {
		if h.ModelOutput == nil || len(h.ModelOutput.Action) == 0 {
			continue
		}
		var lastErr error
		succeeded := false
		for attempt := 0; attempt < maxRetries; attempt++ {
			summary, err := a.Controller.browser.GetStateSummary(ctx, true)
			if err != nil {
				lastErr = err
				continue
			}
			actions := make([]ActionModel, len(h.ModelOutput.Action))
			copy(actions, h.ModelOutput.Action)
			ok := true
			for i, act := range actions {
				histEl := elAt(h.State.InteractedElement, i)
				if histEl == nil {
					continue
				}
				matched := FindHistoryElementInTree(histEl, summary.SelectorMap)
				if matched == nil {
					lastErr = &ReplayDriftError{StepNumber: stepIdx}
					ok = false
					break
				}
				if matched.HighlightIndex != histEl.HighlightIndex {
					log.Info().
						Int("step", stepIdx).
						Str("action", act.Name).
						Int("from", histEl.HighlightIndex).
						Int("to", matched.HighlightIndex).
						Msg("remapped action index to moved element")
					actions[i].SetIndex(matched.HighlightIndex)
				}
			}
			if !ok {
				continue
			}
			results, actErr := a.multiAct(ctx, actions, true)
			all = append(all, results...)
			if actErr != nil {
				return all, actErr
			}
			succeeded = true
			break
		}
		if !succeeded {
			if skipFailures {
				log.Warn().Int("step", stepIdx).Err(lastErr).Msg("skipping unreplayable step")
				continue
			}
			return all, lastErr
		}
		time.Sleep(delay)
	}
	return all, nil
}

func elAt(elements []*DOMHistoryElement, i int) *DOMHistoryElement {
	if i < 0 || i >= len(elements) {
		return nil
	}
	return elements[i]
}

func now() time.Time { return time.Now() }
