package services

import (
	"fmt"
	"strings"

	"pdf-chat-platform/internal/vector"
)

const systemPrompt = `You are a helpful, concise assistant that responds in clean, safe HTML.
When answering, format the response so the UI can render it directly as HTML.
Important formatting rules:
- Start with a single bold one-line answer enclosed in <strong>...</strong>.
- Follow with a short one-line summary in a <p> tag (optional).
- Provide additional details as a well-spaced unordered list using <ul><li>...</li></ul> if appropriate.
- For citations include a final <p><em>Source: PAGE or FILENAME</em></p> line when available.
- Only use these HTML tags: <strong>, <em>, <p>, <br>, <ul>, <li>, <a href=...>. Do NOT include script, style, or other tags.
- Keep output short and visually clear; prefer bullets for lists and 1-3 bullet items for brevity.
- If the answer is not present in the provided context, reply with a single line in plain text: 'Insufficient information in the provided PDF.'`

const qaTemplate = `%s

# Context:
%s

# Question:
%s

# Instructions:
- Provide the answer in HTML using the rules above.
- First line: a bold one-line answer wrapped in <strong>...</strong>.
- Optionally include a short <p> summary and then a <ul> list of 1-3 key bullets.
- Conclude with a citation line like <p><em>Source: page X</em></p> if a source exists in context.
- Keep the total output concise (aim for ~40-150 words) unless the user explicitly asks for more.`

const mcqTemplate = `%s

# Context:
%s

# Question:
%s

# Instructions for multiple-choice questions (MCQ):
- Respond using HTML.
- First line: the chosen option letter in bold, e.g. <strong>A</strong> (no extra text on that line).
- Next line: a concise justification in one short <p> sentence.
- Optionally provide 1-2 supporting bullets inside <ul><li>...</li></ul>.
- Conclude with <p><em>Source: page X</em></p> if available, or 'Insufficient information in the provided PDF.' if not.`

// BuildContext concatenates retrieved chunk texts, prefixing each with a
// page header when page metadata exists.
func BuildContext(hits []vector.Hit) string {
	var b strings.Builder
	for i, hit := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if hit.Payload.Page > 0 {
			b.WriteString(fmt.Sprintf("[Source: page %d]\n", hit.Payload.Page))
		}
		b.WriteString(hit.Payload.Text)
	}
	return b.String()
}

func BuildQAPrompt(contextBlock, question string) string {
	return fmt.Sprintf(qaTemplate, systemPrompt, contextBlock, question)
}

func BuildMCQPrompt(contextBlock, question string) string {
	return fmt.Sprintf(mcqTemplate, systemPrompt, contextBlock, question)
}
