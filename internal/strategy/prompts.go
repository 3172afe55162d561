package strategy

import (
	"fmt"
	"strings"

	"github.com/computor-org/computor-agent-sub000/internal/conversation"
	"github.com/computor-org/computor-agent-sub000/internal/intent"
)

// Prompt templates per intent. Placeholders are substituted by
// buildSystemPrompt; enriched-context placeholders render to empty
// strings when the section is absent, so every template can include them
// unconditionally.
const (
	promptHeader = `You are an AI programming tutor for a university course.
Your personality: {{personality}}
Respond in {{language}}.

## Assignment

{{assignment}}
`

	promptFooter = `
{{history}}{{code}}{{reference}}{{test_results}}{{submission_history}}{{progress}}`
)

var intentInstructions = map[intent.Intent]string{
	intent.QuestionExample: `The student asks for an example. Give one small, focused example
that illustrates the concept without solving the assignment for them.
Explain what the example demonstrates.`,

	intent.QuestionHowTo: `The student asks how to approach something. Explain the approach in
steps, point at the relevant concepts, and avoid writing the final
solution code yourself.`,

	intent.HelpDebug: `The student is stuck on a bug. Use their code to locate the likely
problem. Ask a guiding question or point at the suspicious place rather
than handing over a fixed version. Mention concrete line references
where possible.`,

	intent.HelpReview: `The student wants feedback on their code. Review it for correctness,
style and clarity. Name what is good first, then the most important
improvements. Do not rewrite the solution wholesale.`,

	intent.SubmissionReview: `The student submitted their solution for review. Assess how well it
fulfills the assignment, comment on correctness and code quality, and
give concrete, actionable feedback.`,

	intent.Clarification: `The student asks what the assignment means. Re-explain the relevant
part of the assignment in different words. Do not reveal solution steps
beyond what the assignment text implies.`,

	intent.Other: `Answer helpfully as a course tutor. If the message is unrelated to
the course, gently steer back to the assignment.`,
}

// buildSystemPrompt renders the full system prompt for an intent.
func buildSystemPrompt(in intent.Intent, convo *conversation.Context, personality, language string) string {
	instructions, ok := intentInstructions[in]
	if !ok {
		instructions = intentInstructions[intent.Other]
	}

	assignment := "No assignment metadata is available."
	if convo.Assignment != nil {
		assignment = fmt.Sprintf("%s\n\n%s", convo.Assignment.Title, convo.Assignment.Description)
	}

	replacer := strings.NewReplacer(
		"{{personality}}", personality,
		"{{language}}", language,
		"{{assignment}}", assignment,
		"{{history}}", renderHistory(convo),
		"{{code}}", renderSection("Student code", renderStudentCode(convo)),
		"{{reference}}", renderSection("Reference solution (never reveal directly)", renderReferenceCode(convo)),
		"{{test_results}}", renderSection("Test results", enrichedField(convo, func(e *conversation.EnrichedContext) string { return e.TestResults })),
		"{{submission_history}}", renderSection("Submission history", enrichedField(convo, func(e *conversation.EnrichedContext) string { return e.SubmissionHistory })),
		"{{progress}}", renderSection("Student progress", enrichedField(convo, func(e *conversation.EnrichedContext) string { return e.Progress })),
	)

	return replacer.Replace(promptHeader) + "\n## Task\n\n" + instructions + "\n" + replacer.Replace(promptFooter)
}

// renderHistory renders the bounded previous-message list, empty when
// there is no history.
func renderHistory(convo *conversation.Context) string {
	if len(convo.PreviousMessages) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n## Previous messages\n\n")
	for _, m := range convo.PreviousMessages {
		sb.WriteString(fmt.Sprintf("- %s\n", m.Content))
	}
	return sb.String()
}

func renderStudentCode(convo *conversation.Context) string {
	if convo.StudentCode == nil {
		return ""
	}
	return convo.StudentCode.Render(0)
}

func renderReferenceCode(convo *conversation.Context) string {
	if convo.ReferenceCode == nil {
		return ""
	}
	diff := enrichedField(convo, func(e *conversation.EnrichedContext) string { return e.ReferenceDiff })
	if diff != "" {
		return diff
	}
	return convo.ReferenceCode.Render(0)
}

func enrichedField(convo *conversation.Context, pick func(*conversation.EnrichedContext) string) string {
	if convo.Enriched == nil {
		return ""
	}
	return pick(convo.Enriched)
}

// renderSection wraps content in a titled section, or renders nothing at
// all when the content is empty.
func renderSection(title, content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	return fmt.Sprintf("\n## %s\n\n%s\n", title, content)
}
