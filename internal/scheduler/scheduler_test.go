package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/computor-org/computor-agent-sub000/internal/agent"
	"github.com/computor-org/computor-agent-sub000/internal/config"
	"github.com/computor-org/computor-agent-sub000/internal/platform"
	"github.com/computor-org/computor-agent-sub000/internal/store"
	"github.com/computor-org/computor-agent-sub000/internal/trigger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakePlatform serves one conversation with a student question pending.
type fakePlatform struct {
	platform.Client

	mu        sync.Mutex
	groups    []platform.SubmissionGroup
	messages  map[string][]platform.Message
	members   map[string][]platform.CourseMember
	artifacts map[string][]platform.Submission
}

func (f *fakePlatform) ListSubmissionGroups(ctx context.Context, filter platform.GroupFilter) ([]platform.SubmissionGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.SubmissionGroup(nil), f.groups...), nil
}

func (f *fakePlatform) GetMessages(ctx context.Context, conversationID string) ([]platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[conversationID], nil
}

func (f *fakePlatform) GetCourseMembers(ctx context.Context, conversationID string) ([]platform.CourseMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[conversationID], nil
}

func (f *fakePlatform) ListSubmissions(ctx context.Context, groupID string) ([]platform.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.artifacts[groupID], nil
}

// fakeProcessor records processed triggers and succeeds.
type fakeProcessor struct {
	mu          sync.Mutex
	messages    []string // Processed message ids
	submissions []string // Processed artifact ids
	block       chan struct{} // When set, processing waits until closed
}

func (p *fakeProcessor) ProcessMessage(ctx context.Context, group platform.SubmissionGroup, msg *platform.Message) *agent.ProcessingResult {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	p.messages = append(p.messages, msg.ID)
	p.mu.Unlock()
	return &agent.ProcessingResult{ConversationID: group.ID, Success: true}
}

func (p *fakeProcessor) ProcessSubmission(ctx context.Context, group platform.SubmissionGroup, artifact *platform.Submission) *agent.ProcessingResult {
	p.mu.Lock()
	p.submissions = append(p.submissions, artifact.ID)
	p.mu.Unlock()
	return &agent.ProcessingResult{ConversationID: group.ID, Success: true}
}

func (p *fakeProcessor) processedMessages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.messages...)
}

func (p *fakeProcessor) processedSubmissions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.submissions...)
}

func pendingConversation() *fakePlatform {
	return &fakePlatform{
		groups: []platform.SubmissionGroup{{ID: "conv-1", CourseID: "course-1", ContentID: "content-1"}},
		messages: map[string][]platform.Message{
			"conv-1": {{ID: "m1", ConversationID: "conv-1", AuthorID: "u1", Content: "help", CreatedAt: time.Now()}},
		},
		members: map[string][]platform.CourseMember{
			"conv-1": {{UserID: "u1", CourseID: "course-1", Role: platform.RoleStudent}},
		},
		artifacts: map[string][]platform.Submission{
			"conv-1": {
				{ID: "a1", GroupID: "conv-1", Submit: true},
				{ID: "a2", GroupID: "conv-1", Submit: false},
			},
		},
	}
}

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		PollInterval:            "1h", // Cycles are driven manually in tests
		MaxConcurrentProcessing: 2,
		Cooldown:                "60s",
		CheckMessages:           true,
		CheckSubmissions:        true,
	}
}

func newTestScheduler(api *fakePlatform, proc Processor, st *store.StateStore) *TutorScheduler {
	return New(Options{
		API:       api,
		Checker:   trigger.NewChecker(api),
		Processor: proc,
		Config:    testSchedulerConfig(),
		State:     st,
	})
}

func TestCycle_ProcessesPendingTriggers(t *testing.T) {
	api := pendingConversation()
	proc := &fakeProcessor{}
	s := newTestScheduler(api, proc, nil)

	s.cycle(context.Background())

	if got := proc.processedMessages(); len(got) != 1 || got[0] != "m1" {
		t.Fatalf("processed messages = %v, want [m1]", got)
	}
	// a1 is submitted, a2 is a draft
	if got := proc.processedSubmissions(); len(got) != 1 || got[0] != "a1" {
		t.Fatalf("processed submissions = %v, want [a1]", got)
	}
}

func TestCycle_CooldownSkipsRecentConversation(t *testing.T) {
	api := pendingConversation()
	proc := &fakeProcessor{}
	s := newTestScheduler(api, proc, nil)

	s.cycle(context.Background())
	if len(proc.processedMessages()) != 1 {
		t.Fatal("first cycle must process")
	}

	// Fresh student message arrives, but the conversation was processed
	// 30s ago against a 60s cooldown: skip.
	api.mu.Lock()
	api.messages["conv-1"] = append(api.messages["conv-1"],
		platform.Message{ID: "m2", ConversationID: "conv-1", AuthorID: "u1", Content: "more", CreatedAt: time.Now()})
	api.mu.Unlock()

	s.mu.Lock()
	s.conversations["conv-1"].lastProcessed = time.Now().Add(-30 * time.Second)
	s.mu.Unlock()

	s.cycle(context.Background())
	if len(proc.processedMessages()) != 1 {
		t.Fatal("conversation inside the cooldown window must be skipped")
	}

	// 61s after processing the cooldown has lapsed: evaluate again.
	s.mu.Lock()
	s.conversations["conv-1"].lastProcessed = time.Now().Add(-61 * time.Second)
	s.mu.Unlock()

	s.cycle(context.Background())
	if got := proc.processedMessages(); len(got) != 2 || got[1] != "m2" {
		t.Fatalf("expired cooldown must process the new message, got %v", got)
	}
}

func TestCycle_SameMessageNotReprocessed(t *testing.T) {
	api := pendingConversation()
	proc := &fakeProcessor{}
	s := newTestScheduler(api, proc, nil)

	s.cycle(context.Background())

	// Cooldown lapsed but the last student message is unchanged
	s.mu.Lock()
	s.conversations["conv-1"].lastProcessed = time.Now().Add(-2 * time.Minute)
	s.mu.Unlock()

	s.cycle(context.Background())
	if got := proc.processedMessages(); len(got) != 1 {
		t.Fatalf("an already-answered message must not be reprocessed, got %v", got)
	}
	if got := proc.processedSubmissions(); len(got) != 1 {
		t.Fatalf("an already-reviewed artifact must not be reprocessed, got %v", got)
	}
}

func TestProcessingFlag_MutualExclusion(t *testing.T) {
	api := pendingConversation()
	release := make(chan struct{})
	proc := &fakeProcessor{block: release}
	s := newTestScheduler(api, proc, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.cycle(context.Background())
	}()

	// Wait until the first cycle holds the conversation
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		cs := s.conversations["conv-1"]
		held := cs != nil && cs.processing
		s.mu.Unlock()
		if held {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	// A concurrent cycle must bounce off the processing flag
	s.cycle(context.Background())

	close(release)
	wg.Wait()

	if got := proc.processedMessages(); len(got) != 1 {
		t.Fatalf("overlapping cycles must process once, got %v", got)
	}
}

func TestSemaphore_BoundsConcurrency(t *testing.T) {
	var current, max int32
	api := &fakePlatform{
		messages: map[string][]platform.Message{},
		members:  map[string][]platform.CourseMember{},
		artifacts: map[string][]platform.Submission{},
	}
	for _, id := range []string{"c1", "c2", "c3", "c4", "c5"} {
		api.groups = append(api.groups, platform.SubmissionGroup{ID: id, CourseID: "course-1"})
		api.messages[id] = []platform.Message{{ID: id + "-m", ConversationID: id, AuthorID: "u1", Content: "q", CreatedAt: time.Now()}}
		api.members[id] = []platform.CourseMember{{UserID: "u1", CourseID: "course-1", Role: platform.RoleStudent}}
	}

	proc := &countingProcessor{current: &current, max: &max}
	s := newTestScheduler(api, proc, nil)

	s.cycle(context.Background())

	if atomic.LoadInt32(&max) > 2 {
		t.Fatalf("max concurrent processing = %d, limit was 2", max)
	}
	if atomic.LoadInt32(&proc.total) != 5 {
		t.Fatalf("all 5 conversations must be processed, got %d", proc.total)
	}
}

type countingProcessor struct {
	current *int32
	max     *int32
	total   int32
}

func (p *countingProcessor) track() func() {
	c := atomic.AddInt32(p.current, 1)
	for {
		old := atomic.LoadInt32(p.max)
		if c <= old || atomic.CompareAndSwapInt32(p.max, old, c) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return func() {
		atomic.AddInt32(p.current, -1)
		atomic.AddInt32(&p.total, 1)
	}
}

func (p *countingProcessor) ProcessMessage(ctx context.Context, group platform.SubmissionGroup, msg *platform.Message) *agent.ProcessingResult {
	defer p.track()()
	return &agent.ProcessingResult{ConversationID: group.ID, Success: true}
}

func (p *countingProcessor) ProcessSubmission(ctx context.Context, group platform.SubmissionGroup, artifact *platform.Submission) *agent.ProcessingResult {
	defer p.track()()
	return &agent.ProcessingResult{ConversationID: group.ID, Success: true}
}

func TestStatePersistence_SurvivesRestart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")
	st, err := store.NewStateStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}

	api := pendingConversation()
	proc := &fakeProcessor{}
	s := newTestScheduler(api, proc, st)
	s.cycle(context.Background())

	if len(proc.processedMessages()) != 1 || len(proc.processedSubmissions()) != 1 {
		t.Fatal("first run must process both triggers")
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	// Restarted scheduler with a fresh in-memory map but the same store
	st2, err := store.NewStateStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer st2.Close()

	proc2 := &fakeProcessor{}
	s2 := newTestScheduler(api, proc2, st2)
	s2.seedFromStore()

	// Clear the cooldown carried over from the first run; only the
	// message/artifact dedupe should prevent reprocessing.
	s2.mu.Lock()
	s2.conversations["conv-1"].lastProcessed = time.Now().Add(-time.Hour)
	s2.mu.Unlock()

	s2.cycle(context.Background())
	if len(proc2.processedMessages()) != 0 {
		t.Fatalf("restart must not re-answer message m1, got %v", proc2.processedMessages())
	}
	if len(proc2.processedSubmissions()) != 0 {
		t.Fatalf("restart must not re-grade artifact a1, got %v", proc2.processedSubmissions())
	}
}

func TestStartStop(t *testing.T) {
	api := pendingConversation()
	proc := &fakeProcessor{}
	s := newTestScheduler(api, proc, nil)

	var results int32
	s.OnResult = func(r *agent.ProcessingResult) {
		atomic.AddInt32(&results, 1)
	}

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	// The first cycle runs immediately on start
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && atomic.LoadInt32(&results) < 2 {
		time.Sleep(10 * time.Millisecond)
	}

	s.Stop()
	<-done

	if atomic.LoadInt32(&results) != 2 {
		t.Fatalf("expected 2 results (message + submission), got %d", results)
	}
}
