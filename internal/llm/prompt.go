package llm

import (
	"fmt"
	"strings"
)

const lessonSystemPrompt = `You turn book passages into micro-lessons: short slide sequences that teach one vivid idea.

Reply with JSON only, shaped as:
{"lessons":[{"name":"...","description":"...","slides":["...","..."]}]}

Lessons:
- Each lesson centers on one surprising or emotionally charged idea from the passages.
- Lessons must not overlap.
- name is a short hook of at most eight words.
- description is one or two sentences.

Slides:
- Five to eight slides per lesson, ten to fifteen words each.
- The first slide is a hook that makes the reader want the next one.
- Each following slide advances the idea by one step.
- Stay faithful to the passages. Do not invent facts.`

// buildUserPrompt assembles direction and passages for one generation call.
func buildUserPrompt(passages []string, direction, referenceName string) string {
	var directions []string
	if referenceName != "" {
		directions = append(directions,
			fmt.Sprintf("Match the emotional arc and pacing of the lesson titled %q, with new material.", referenceName))
	}
	if d := strings.TrimSpace(direction); d != "" {
		directions = append(directions, "User direction: "+d)
	}
	if len(directions) == 0 {
		directions = append(directions, "Find the most gripping new lesson these passages support.")
	}

	var b strings.Builder
	b.WriteString("DIRECTION:\n")
	b.WriteString(strings.Join(directions, "\n"))
	b.WriteString("\n\nPASSAGES:\n-----\n")
	b.WriteString(strings.Join(passages, passageSeparator))
	b.WriteString("\n-----\n")
	return b.String()
}
