package openai

import (
	"strings"
	"unicode"

	"browseragent/internal/llm"
)

// EstTokenizer approximates GPT-family BPE counts without a tokenizer data
// file: whitespace-delimited words weigh about 1.3 tokens each and every
// punctuation or symbol rune counts on its own. Close enough for the message
// manager's budget math, and deterministic on insert and eviction.
type EstTokenizer struct{}

// CountTokens implements llm.Tokenizer.
func (EstTokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	words := 0
	symbols := 0
	for _, field := range strings.Fields(text) {
		words++
		for _, r := range field {
			if unicode.IsPunct(r) || unicode.IsSymbol(r) {
				symbols++
			}
		}
	}
	n := words + words/3 + symbols
	if n == 0 {
		n = 1
	}
	return n
}

var _ llm.Tokenizer = EstTokenizer{}
