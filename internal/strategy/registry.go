package strategy

import (
	"github.com/computor-org/computor-agent-sub000/internal/config"
	"github.com/computor-org/computor-agent-sub000/internal/intent"
	"github.com/computor-org/computor-agent-sub000/internal/llm"
	"github.com/computor-org/computor-agent-sub000/internal/notes"
)

// Registry holds one strategy per intent. Lookups for intents without a
// dedicated strategy fall back to the "other" strategy, so resolution
// never fails.
type Registry struct {
	strategies map[intent.Intent]Strategy
	fallback   Strategy
}

// Options carries the shared dependencies strategies are built from.
type Options struct {
	Client      llm.Client
	Personality string
	Language    string
	Notes       *notes.Store // optional
	Grading     config.GradingConfig
}

// NewRegistry builds the full strategy set.
func NewRegistry(o Options) *Registry {
	base := func(in intent.Intent) baseStrategy {
		return baseStrategy{
			client:      o.Client,
			intent:      in,
			personality: o.Personality,
			language:    o.Language,
		}
	}

	other := &baseStrategy{
		client:      o.Client,
		intent:      intent.Other,
		personality: o.Personality,
		language:    o.Language,
	}

	r := &Registry{
		strategies: map[intent.Intent]Strategy{
			intent.QuestionExample: ptr(base(intent.QuestionExample)),
			intent.QuestionHowTo:   ptr(base(intent.QuestionHowTo)),
			intent.HelpDebug:       &helpDebugStrategy{baseStrategy: base(intent.HelpDebug), notes: o.Notes},
			intent.HelpReview:      ptr(base(intent.HelpReview)),
			intent.SubmissionReview: &submissionReviewStrategy{
				baseStrategy: base(intent.SubmissionReview),
				grading:      o.Grading,
			},
			intent.Clarification: ptr(base(intent.Clarification)),
			intent.Other:         other,
		},
		fallback: other,
	}
	return r
}

// Get resolves the strategy for an intent, falling back to "other".
func (r *Registry) Get(in intent.Intent) Strategy {
	if s, ok := r.strategies[in]; ok {
		return s
	}
	return r.fallback
}

// Names lists the registered strategy names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for in := range r.strategies {
		names = append(names, in.String())
	}
	return names
}

func ptr(s baseStrategy) *baseStrategy {
	return &s
}
