package browseragent

import (
	"encoding/json"
	"os"
)

// DefaultHistoryFilename is the default persisted-run filename.
const DefaultHistoryFilename = "AgentHistory.json"

// SaveToFile serializes the history list to path as a JSON array of
// {model_output, result, state, metadata} objects.
func (l *AgentHistoryList) SaveToFile(path string) error {
	data, err := json.MarshalIndent(l.History, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadHistoryFromFile reconstructs an AgentHistoryList from a file written by
// SaveToFile.
func LoadHistoryFromFile(path string) (*AgentHistoryList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []AgentHistory
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return &AgentHistoryList{History: entries}, nil
}
