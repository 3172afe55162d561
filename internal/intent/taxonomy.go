// Package intent classifies what a student wants from the tutor. The
// taxonomy is closed: every interaction maps to exactly one of seven
// intents, and the selected intent drives strategy dispatch.
package intent

import "strings"

// Intent is one value of the closed classification taxonomy.
type Intent string

const (
	// QuestionExample: the student asks for an example or illustration.
	QuestionExample Intent = "question_example"
	// QuestionHowTo: the student asks how to approach or implement something.
	QuestionHowTo Intent = "question_howto"
	// HelpDebug: the student has failing/broken code and wants debugging help.
	HelpDebug Intent = "help_debug"
	// HelpReview: the student wants feedback on working code.
	HelpReview Intent = "help_review"
	// SubmissionReview: an official submission awaits review/grading.
	SubmissionReview Intent = "submission_review"
	// Clarification: the student asks about the assignment text itself.
	Clarification Intent = "clarification"
	// Other: anything that fits none of the above.
	Other Intent = "other"
)

// All lists every intent in the taxonomy.
func All() []Intent {
	return []Intent{
		QuestionExample,
		QuestionHowTo,
		HelpDebug,
		HelpReview,
		SubmissionReview,
		Clarification,
		Other,
	}
}

// Parse maps a model-emitted intent name to the closed taxonomy.
// Unknown names report ok=false so callers can apply their default.
func Parse(s string) (Intent, bool) {
	normalized := Intent(strings.ToLower(strings.TrimSpace(s)))
	for _, i := range All() {
		if normalized == i {
			return i, true
		}
	}
	return Other, false
}

func (i Intent) String() string {
	return string(i)
}
