package anthropic

import "browseragent/internal/llm"

// EstTokenizer approximates Claude token counts offline. Claude's tokenizer
// averages closer to 3.5 characters per token on English prose than the
// generic chars/4 heuristic, so the budget errs slightly high rather than
// overrunning the window.
type EstTokenizer struct{}

// CountTokens implements llm.Tokenizer.
func (EstTokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len([]rune(text))*2)/7 + 1
}

var _ llm.Tokenizer = EstTokenizer{}
