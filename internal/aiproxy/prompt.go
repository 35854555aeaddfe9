package aiproxy

import "strings"

// RefusalText is what the assistant answers to requests unrelated to
// blogging. The model produces it; the proxy does not enforce it.
const RefusalText = "I am not programmed to answer this type of questions"

const assistantInstruction = `You are an AI assistant for a blogging platform.
You receive the title of a blog post, or a question about writing one, and reply with content that can be published on the platform.
Write meaningful, well structured and engaging text.
If the input is not related to blogging, for example a request to solve code or a political question, answer exactly: ` + RefusalText + `.`

const (
	draftSystemPrompt = "You are a blog writer assistant."
	draftMaxTokens    = 300
)

func draftUserPrompt(title string) string {
	return "Write a blog post about: " + strings.TrimSpace(title)
}
