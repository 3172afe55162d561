// Package scheduler polls the platform for conversations that need a
// tutor response and dispatches them to the agent.
//
// Concurrency model: each poll cycle fans out one goroutine per
// submission group to evaluate triggers, but actual processing passes
// through a counting semaphore of max_concurrent_processing slots. A
// per-conversation processing flag guarantees at most one in-flight
// interaction per conversation, and a cooldown keeps the agent from
// hammering the same conversation on consecutive cycles.
package scheduler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/computor-org/computor-agent-sub000/internal/agent"
	"github.com/computor-org/computor-agent-sub000/internal/config"
	"github.com/computor-org/computor-agent-sub000/internal/logging"
	"github.com/computor-org/computor-agent-sub000/internal/platform"
	"github.com/computor-org/computor-agent-sub000/internal/store"
	"github.com/computor-org/computor-agent-sub000/internal/trigger"
)

// Processor runs one interaction. Satisfied by agent.TutorAgent;
// substituted by fakes in tests.
type Processor interface {
	ProcessMessage(ctx context.Context, group platform.SubmissionGroup, msg *platform.Message) *agent.ProcessingResult
	ProcessSubmission(ctx context.Context, group platform.SubmissionGroup, artifact *platform.Submission) *agent.ProcessingResult
}

// conversationState tracks per-conversation scheduling state.
type conversationState struct {
	lastProcessed      time.Time
	processing         bool
	lastMessageID      string // Last message already answered
	processedArtifacts map[string]bool
}

// TutorScheduler is the polling loop.
type TutorScheduler struct {
	api       platform.Client
	checker   *trigger.Checker
	processor Processor
	cfg       config.SchedulerConfig
	filter    platform.GroupFilter
	state     *store.StateStore // nil disables persistence

	// OnResult, when set, receives every processing result. Used by the
	// CLI for reporting and by tests for synchronization.
	OnResult func(*agent.ProcessingResult)

	sem chan struct{}

	mu            sync.Mutex
	conversations map[string]*conversationState

	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// Options carries the scheduler dependencies.
type Options struct {
	API       platform.Client
	Checker   *trigger.Checker
	Processor Processor
	Config    config.SchedulerConfig
	Filter    platform.GroupFilter
	State     *store.StateStore
}

// New creates a scheduler.
func New(o Options) *TutorScheduler {
	slots := o.Config.MaxConcurrentProcessing
	if slots <= 0 {
		slots = 3
	}
	return &TutorScheduler{
		api:           o.API,
		checker:       o.Checker,
		processor:     o.Processor,
		cfg:           o.Config,
		filter:        o.Filter,
		state:         o.State,
		sem:           make(chan struct{}, slots),
		conversations: make(map[string]*conversationState),
		done:          make(chan struct{}),
	}
}

// Start seeds state and runs the poll loop until the context is canceled
// or Stop is called. It blocks; run it in a goroutine.
func (s *TutorScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	defer close(s.done)

	s.seedFromStore()

	interval := s.cfg.PollIntervalDuration()
	logging.Scheduler("starting: poll=%v cooldown=%v slots=%d",
		interval, s.cfg.CooldownDuration(), cap(s.sem))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			logging.Scheduler("stopping, waiting for in-flight processing")
			s.wg.Wait()
			return
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

// Stop cancels the loop and blocks until it has fully drained.
func (s *TutorScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

// seedFromStore restores per-conversation state after a restart.
func (s *TutorScheduler) seedFromStore() {
	if s.state == nil {
		return
	}

	states, err := s.state.LoadConversationStates()
	if err != nil {
		logging.Get(logging.CategoryScheduler).Warn("failed to load conversation states: %v", err)
	}
	artifacts, err := s.state.LoadProcessedArtifacts()
	if err != nil {
		logging.Get(logging.CategoryScheduler).Warn("failed to load processed artifacts: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range states {
		s.conversations[st.ConversationID] = &conversationState{
			lastProcessed:      st.LastProcessed,
			lastMessageID:      st.LastMessageID,
			processedArtifacts: make(map[string]bool),
		}
	}
	for convID, ids := range artifacts {
		cs := s.conversations[convID]
		if cs == nil {
			cs = &conversationState{processedArtifacts: make(map[string]bool)}
			s.conversations[convID] = cs
		}
		for id := range ids {
			cs.processedArtifacts[id] = true
		}
	}
	logging.Scheduler("seeded state for %d conversation(s)", len(s.conversations))
}

// cycle evaluates every tracked submission group once. Errors are logged
// and the next tick tries again; a poll cycle never kills the loop.
func (s *TutorScheduler) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryScheduler).Error("poll cycle panic: %v", r)
		}
	}()

	timer := logging.StartTimer(logging.CategoryScheduler, "Scheduler.cycle")
	defer timer.Stop()

	groups, err := s.api.ListSubmissionGroups(ctx, s.filter)
	if err != nil {
		logging.Get(logging.CategoryScheduler).Warn("group listing failed: %v", err)
		return
	}
	logging.SchedulerDebug("cycle: %d group(s)", len(groups))

	g, gctx := errgroup.WithContext(ctx)
	for _, group := range groups {
		group := group
		g.Go(func() error {
			s.evaluate(gctx, group)
			return nil
		})
	}
	g.Wait()
}

// evaluate checks one group's triggers and processes at most one message
// and any pending submissions, sequentially for that conversation.
func (s *TutorScheduler) evaluate(ctx context.Context, group platform.SubmissionGroup) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryScheduler).Error("evaluation panic for %s: %v", group.ID, r)
			s.release(group.ID)
		}
	}()

	if !s.tryAcquire(group.ID) {
		return
	}
	defer s.release(group.ID)

	if s.cfg.CheckMessages {
		s.checkMessages(ctx, group)
	}
	if s.cfg.CheckSubmissions {
		s.checkSubmissions(ctx, group)
	}
}

// tryAcquire claims a conversation for this cycle. It fails when the
// conversation is already being processed or is still cooling down.
func (s *TutorScheduler) tryAcquire(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := s.conversations[conversationID]
	if cs == nil {
		cs = &conversationState{processedArtifacts: make(map[string]bool)}
		s.conversations[conversationID] = cs
	}
	if cs.processing {
		logging.SchedulerDebug("conversation %s: already processing, skipped", conversationID)
		return false
	}
	if !cs.lastProcessed.IsZero() && time.Since(cs.lastProcessed) < s.cfg.CooldownDuration() {
		logging.SchedulerDebug("conversation %s: cooling down, skipped", conversationID)
		return false
	}
	cs.processing = true
	return true
}

func (s *TutorScheduler) release(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cs := s.conversations[conversationID]; cs != nil {
		cs.processing = false
	}
}

func (s *TutorScheduler) checkMessages(ctx context.Context, group platform.SubmissionGroup) {
	check, err := s.checker.CheckMessageTrigger(ctx, group.ID, group.CourseID)
	if err != nil {
		logging.Get(logging.CategoryScheduler).Warn("message trigger check failed for %s: %v", group.ID, err)
		return
	}
	if !check.ShouldRespond {
		logging.SchedulerDebug("conversation %s: %s", group.ID, check.Reason)
		return
	}

	s.mu.Lock()
	alreadyAnswered := s.conversations[group.ID].lastMessageID == check.Message.ID
	s.mu.Unlock()
	if alreadyAnswered {
		logging.SchedulerDebug("conversation %s: message %s already handled", group.ID, check.Message.ID)
		return
	}

	result := s.runProcessing(ctx, func(ctx context.Context) *agent.ProcessingResult {
		return s.processor.ProcessMessage(ctx, group, check.Message)
	})
	if result == nil {
		return
	}
	if result.Success {
		s.markProcessed(group.ID, check.Message.ID, "")
	}
	s.report(result)
}

func (s *TutorScheduler) checkSubmissions(ctx context.Context, group platform.SubmissionGroup) {
	artifacts, err := s.api.ListSubmissions(ctx, group.ID)
	if err != nil {
		logging.Get(logging.CategoryScheduler).Warn("submission listing failed for %s: %v", group.ID, err)
		return
	}

	for i := range artifacts {
		artifact := artifacts[i]

		s.mu.Lock()
		seen := s.conversations[group.ID].processedArtifacts[artifact.ID]
		s.mu.Unlock()
		if seen {
			continue
		}

		check := s.checker.CheckSubmissionTrigger(group.ID, artifact)
		if !check.ShouldRespond {
			logging.SchedulerDebug("conversation %s: %s", group.ID, check.Reason)
			continue
		}

		result := s.runProcessing(ctx, func(ctx context.Context) *agent.ProcessingResult {
			return s.processor.ProcessSubmission(ctx, group, check.Submission)
		})
		if result == nil {
			return
		}
		if result.Success {
			s.markProcessed(group.ID, "", artifact.ID)
		}
		s.report(result)
	}
}

// runProcessing executes one interaction under a semaphore slot. A nil
// return means the scheduler is shutting down before a slot freed up.
func (s *TutorScheduler) runProcessing(ctx context.Context, run func(context.Context) *agent.ProcessingResult) *agent.ProcessingResult {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil
	}
	defer func() { <-s.sem }()

	s.wg.Add(1)
	defer s.wg.Done()

	return run(ctx)
}

// markProcessed updates in-memory state and writes through to the store.
func (s *TutorScheduler) markProcessed(conversationID, messageID, artifactID string) {
	now := time.Now()

	s.mu.Lock()
	cs := s.conversations[conversationID]
	cs.lastProcessed = now
	if messageID != "" {
		cs.lastMessageID = messageID
	}
	if artifactID != "" {
		cs.processedArtifacts[artifactID] = true
	}
	lastMessageID := cs.lastMessageID
	s.mu.Unlock()

	if s.state == nil {
		return
	}
	if err := s.state.SaveConversationState(store.ConversationState{
		ConversationID: conversationID,
		LastMessageID:  lastMessageID,
		LastProcessed:  now,
	}); err != nil {
		logging.Get(logging.CategoryScheduler).Warn("state save failed for %s: %v", conversationID, err)
	}
	if artifactID != "" {
		if err := s.state.MarkArtifactProcessed(conversationID, artifactID); err != nil {
			logging.Get(logging.CategoryScheduler).Warn("artifact save failed for %s: %v", conversationID, err)
		}
	}
}

func (s *TutorScheduler) report(result *agent.ProcessingResult) {
	if s.OnResult != nil {
		s.OnResult(result)
	}
}
