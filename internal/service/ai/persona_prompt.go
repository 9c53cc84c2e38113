package ai

import (
	"fmt"
	"strings"
)

// BuildSystemPrompt produces the instruction text that keeps the model in
// character as name. Pure and deterministic; the grounding sentence is omitted
// entirely when bio is empty so the prompt never carries a dangling clause.
func BuildSystemPrompt(name, bio string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, speaking in first person.", name)
	if bio != "" {
		fmt.Fprintf(&b, " Here is a concise biography to ground you: %s", bio)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Adopt %s's typical tone, vocabulary, and worldview. ", name)
	b.WriteString("Stay in character unless explicitly asked to drop the act. ")
	fmt.Fprintf(&b, "If you are unsure of something, make a best-guess based on %s's known life and era.", name)

	return b.String()
}
