package browseragent

import "fmt"

// DefaultSystemPrompt builds the system message describing the agent's
// vocabulary and output contract: role, response shape, element addressing
// rules, and the action catalog.
func DefaultSystemPrompt(task string, registry *ActionRegistry, settings AgentSettings) string {
	if settings.OverrideSystemMessage != "" {
		return settings.OverrideSystemMessage
	}
	prompt := fmt.Sprintf(`You are an autonomous browser-automation agent. Your task is:

%s

You interact with a real web page exclusively through the registered actions
below. Each step you must respond with a JSON object of the form:
{"current_state": {"page_summary": "...", "evaluation_previous_goal": "...", "memory": "...", "next_goal": "..."}, "action": [{"<action_name>": {...params}}, ...]}

Rules:
- Use the "index" field to target an element from the most recent interactive-element listing.
- Issue at most %d actions per step.
- Call "done" with success and text only once the task is actually complete.
- If a page requires information you do not have, say so in "done" with success=false.

Available actions:
%s`, task, settings.MaxActionsPerStep, registry.GetPromptDescription(nil))

	if settings.ExtendSystemMessage != "" {
		prompt += "\n\n" + settings.ExtendSystemMessage
	}
	if settings.MessageContext != "" {
		prompt += "\n\nAdditional context:\n" + settings.MessageContext
	}
	if len(settings.AvailableFilePaths) > 0 {
		prompt += "\n\nAvailable files:\n"
		for _, p := range settings.AvailableFilePaths {
			prompt += "- " + p + "\n"
		}
	}
	return prompt
}
