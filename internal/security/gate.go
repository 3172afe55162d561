package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/computor-org/computor-agent-sub000/internal/config"
	"github.com/computor-org/computor-agent-sub000/internal/conversation"
	"github.com/computor-org/computor-agent-sub000/internal/llm"
	"github.com/computor-org/computor-agent-sub000/internal/logging"
)

// Gate is the two-phase security screen.
//
// Phase 1 (detection) is fail-open: an LLM failure yields an empty threat
// list, because an infrastructure outage must not block every student.
// Phase 2 (confirmation) is fail-closed: an LLM failure counts as a
// confirmed threat, because by then a detection already exists and letting
// a borderline attack through costs more than blocking one legitimate
// message.
type Gate struct {
	client    llm.Client
	cfg       config.SecurityConfig
	threatLog *ThreatLog // nil when no path is configured
}

// NewGate creates a gate. When a threat log path is configured the log
// file is opened eagerly so misconfiguration fails at startup.
func NewGate(client llm.Client, cfg config.SecurityConfig) (*Gate, error) {
	g := &Gate{client: client, cfg: cfg}
	if cfg.ThreatLogPath != "" {
		tl, err := NewThreatLog(cfg.ThreatLogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open threat log: %w", err)
		}
		g.threatLog = tl
	}
	return g, nil
}

// contentItem is one piece of content to screen.
type contentItem struct {
	source ContentSource
	text   string
	path   string
}

// CheckContext screens a full conversation context: the trigger message
// text (if message checking is on) and a size-bounded rendering of the
// student code (if code checking is on and code is present).
func (g *Gate) CheckContext(ctx context.Context, convo *conversation.Context) *CheckResult {
	result := &CheckResult{
		IsSafe:         true,
		ConversationID: convo.ConversationID,
	}
	if convo.TrigMessage != nil {
		result.MessageID = convo.TrigMessage.ID
		result.UserID = convo.TrigMessage.AuthorID
	}

	if !g.cfg.Enabled {
		return result
	}

	var items []contentItem
	if g.cfg.CheckMessages && convo.TriggerText() != "" {
		items = append(items, contentItem{source: SourceMessage, text: convo.TriggerText()})
	}
	if g.cfg.CheckCode && convo.HasCode() {
		maxChars := g.cfg.MaxCodeChars
		if maxChars <= 0 {
			maxChars = 20000
		}
		items = append(items, contentItem{source: SourceCode, text: convo.StudentCode.Render(maxChars)})
	}

	g.screen(ctx, items, result)
	return result
}

// CheckMessage screens a bare message text outside any full context.
func (g *Gate) CheckMessage(ctx context.Context, text string) *CheckResult {
	result := &CheckResult{IsSafe: true}
	if !g.cfg.Enabled || text == "" {
		return result
	}
	g.screen(ctx, []contentItem{{source: SourceMessage, text: text}}, result)
	return result
}

// CheckCode screens a bare code snippet outside any full context.
func (g *Gate) CheckCode(ctx context.Context, code, filePath string) *CheckResult {
	result := &CheckResult{IsSafe: true}
	if !g.cfg.Enabled || code == "" {
		return result
	}
	g.screen(ctx, []contentItem{{source: SourceCode, text: code, path: filePath}}, result)
	return result
}

// screen runs detection over each content item, then confirmation over
// the combined findings, and fills in the result.
func (g *Gate) screen(ctx context.Context, items []contentItem, result *CheckResult) {
	timer := logging.StartTimer(logging.CategorySecurity, "Gate.screen")
	start := time.Now()
	defer func() {
		result.Elapsed = time.Since(start)
		timer.Stop()
	}()

	var combined strings.Builder
	for _, item := range items {
		threats := g.detect(ctx, item)
		result.Threats = append(result.Threats, threats...)
		combined.WriteString(item.text)
		combined.WriteString("\n")
	}

	if len(result.Threats) == 0 {
		result.IsSafe = true
		return
	}

	logging.Security("detected %d threat(s), highest=%s",
		len(result.Threats), result.HighestThreatLevel())

	if g.cfg.RequireConfirmation {
		confirmed := g.confirm(ctx, combined.String(), result.Threats)
		result.WasConfirmed = true
		result.ConfirmationAgreed = &confirmed
		result.IsSafe = !confirmed
	} else {
		result.IsSafe = !result.ShouldBlock()
	}

	if !result.IsSafe {
		g.logThreat(result)
	}
}

// detect runs the phase-1 detection call for one content item.
// Fail-open: any failure yields an empty threat list.
func (g *Gate) detect(ctx context.Context, item contentItem) []ThreatDetection {
	response, err := g.client.Complete(ctx, llm.Request{
		System:      detectionSystemPrompt,
		Prompt:      buildDetectionPrompt(item),
		MaxTokens:   1024,
		Temperature: 0.0,
	})
	if err != nil {
		logging.Get(logging.CategorySecurity).Warn("detection call failed (fail-open): %v", err)
		return nil
	}

	threats, err := parseDetections(response, item.source, item.path)
	if err != nil {
		logging.Get(logging.CategorySecurity).Warn("detection parse failed (fail-open): %v", err)
		return nil
	}
	return threats
}

// confirm runs the phase-2 confirmation call over the original content
// plus a rendered summary of the phase-1 findings.
// Fail-closed: any failure counts as confirmed.
func (g *Gate) confirm(ctx context.Context, content string, threats []ThreatDetection) bool {
	response, err := g.client.Complete(ctx, llm.Request{
		System:      confirmationSystemPrompt,
		Prompt:      buildConfirmationPrompt(content, threats),
		MaxTokens:   512,
		Temperature: 0.0,
	})
	if err != nil {
		logging.Get(logging.CategorySecurity).Warn("confirmation call failed (fail-closed): %v", err)
		return true
	}

	confirmed, err := parseConfirmation(response)
	if err != nil {
		logging.Get(logging.CategorySecurity).Warn("confirmation parse failed (fail-closed): %v", err)
		return true
	}
	return confirmed
}

func (g *Gate) logThreat(result *CheckResult) {
	if g.threatLog != nil {
		if err := g.threatLog.Append(result); err != nil {
			logging.Get(logging.CategorySecurity).Error("failed to append threat log: %v", err)
		}
		return
	}
	// No path configured: fall back to the plain security log
	logging.Security("BLOCKED conversation=%s user=%s highest=%s threats=%d",
		result.ConversationID, result.UserID, result.HighestThreatLevel(), len(result.Threats))
}

// Close releases the threat log handle.
func (g *Gate) Close() error {
	if g.threatLog != nil {
		return g.threatLog.Close()
	}
	return nil
}
