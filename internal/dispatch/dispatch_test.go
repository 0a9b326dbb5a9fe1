package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/collabotd/collabot/internal/dispatchstore"
	"github.com/collabotd/collabot/internal/model"
	"github.com/collabotd/collabot/internal/pool"
	"github.com/collabotd/collabot/internal/providers"
	"github.com/collabotd/collabot/internal/runner"
)

// recordingProvider is a minimal providers.Provider that records every
// broadcast message and status update it receives, for assertions on
// the runtime's broadcast policy.
type recordingProvider struct {
	mu       sync.Mutex
	messages []model.ChannelMessage
	statuses []string
}

func (p *recordingProvider) Name() string { return "recorder" }
func (p *recordingProvider) Manifest() model.ProviderManifest {
	return model.ProviderManifest{ID: "recorder", Type: "test"}
}
func (p *recordingProvider) AcceptedTypes() []string { return nil }
func (p *recordingProvider) Start() error            { return nil }
func (p *recordingProvider) Stop() error              { return nil }
func (p *recordingProvider) Ready() bool              { return true }
func (p *recordingProvider) Send(msg model.ChannelMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}
func (p *recordingProvider) SetStatus(channel, status string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, status)
	return nil
}
func (p *recordingProvider) OnInbound(providers.InboundHandler) {}

func (p *recordingProvider) snapshot() ([]model.ChannelMessage, []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.ChannelMessage(nil), p.messages...), append([]string(nil), p.statuses...)
}

func (p *recordingProvider) messagesOfType(t string) []model.ChannelMessage {
	msgs, _ := p.snapshot()
	var out []model.ChannelMessage
	for _, m := range msgs {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// fakeAgentScript writes an executable shell script that ignores its
// arguments and prints lines (one newline-delimited JSON wire message
// per entry) to stdout, standing in for the agent subprocess the way
// the embedded-NATS-server pattern stands in for a live broker in the
// provider tests.
func fakeAgentScript(t *testing.T, lines []string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-agent.sh")

	var b strings.Builder
	b.WriteString("#!/bin/sh\ncat <<'WIREEOF'\n")
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("WIREEOF\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o755); err != nil {
		t.Fatalf("write fake agent script: %v", err)
	}
	return path
}

func toolCallLine(id, name, target string) string {
	return fmt.Sprintf(`{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","id":%q,"name":%q,"input":{"file_path":%q}}]}}`, id, name, target)
}

func toolResultLine(id string, isErr bool, content string) string {
	return fmt.Sprintf(`{"type":"user","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":%q,"is_error":%t,"content":%q}]}}`, id, isErr, content)
}

func newTestRuntime(t *testing.T, registry *providers.Registry) (*Runtime, *pool.Pool) {
	t.Helper()
	p := pool.New(0)
	rt := New(runner.New(), dispatchstore.New(), p, pool.NewTracker(), registry, nil, nil, "default-model", nil)
	return rt, p
}

func baseRequest(t *testing.T, binary string) Request {
	t.Helper()
	taskDir := t.TempDir()
	return Request{
		Prompt:     "do the thing",
		Role:       model.Role{Name: "worker", Category: model.CategoryCoding},
		Project:    model.Project{Name: "demo"},
		TaskSlug:   "task-1",
		TaskDir:    taskDir,
		WorkingDir: taskDir,
	}
}

func TestSimpleSuccessDispatchCompletes(t *testing.T) {
	lines := []string{
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"Working on it."}]}}`,
		`{"type":"result","result":"{\"status\":\"success\",\"summary\":\"done\"}","total_cost_usd":0.02,"session_id":"sess-1","usage":{"input_tokens":100,"output_tokens":40}}`,
	}
	rec := &recordingProvider{}
	registry := providers.NewRegistry(nil)
	registry.Register(rec)

	rt, _ := newTestRuntime(t, registry)
	rt.AgentBinary = fakeAgentScript(t, lines)

	req := baseRequest(t, rt.AgentBinary)
	id, err := rt.Start(context.Background(), req)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	result, err := rt.Tracker.Await(id)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if result.Envelope.Status != model.DispatchCompleted {
		t.Fatalf("expected completed, got %s (reason %s)", result.Envelope.Status, result.Envelope.FailureReason)
	}
	if result.Envelope.Result == nil || result.Envelope.Result.Status != model.ResultSuccess {
		t.Fatalf("expected structured result with status success, got %+v", result.Envelope.Result)
	}
	if result.Envelope.Cost == nil || *result.Envelope.Cost != 0.02 {
		t.Fatalf("expected cost 0.02, got %+v", result.Envelope.Cost)
	}

	chats := rec.messagesOfType("chat")
	if len(chats) != 1 || chats[0].Text != "Working on it." {
		t.Fatalf("expected one chat broadcast, got %+v", chats)
	}
	results := rec.messagesOfType("result")
	if len(results) != 1 {
		t.Fatalf("expected one result broadcast, got %d", len(results))
	}

	if rt.Pool.Size() != 0 {
		t.Fatalf("expected pool entry released, size=%d", rt.Pool.Size())
	}
}

func TestRepeatedToolCallTriggersLoopKill(t *testing.T) {
	var lines []string
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("tc-%d", i)
		lines = append(lines, toolCallLine(id, "Read", "same/file.go"))
		lines = append(lines, toolResultLine(id, false, "ok"))
	}
	// Never emits a result message: if the kill didn't fire, this would
	// surface as "crashed", distinguishing the two failure modes.

	registry := providers.NewRegistry(nil)
	rec := &recordingProvider{}
	registry.Register(rec)

	rt, _ := newTestRuntime(t, registry)
	rt.AgentBinary = fakeAgentScript(t, lines)

	req := baseRequest(t, rt.AgentBinary)
	id, err := rt.Start(context.Background(), req)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	result, err := rt.Tracker.Await(id)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if result.Envelope.Status != model.DispatchAborted {
		t.Fatalf("expected aborted, got %s", result.Envelope.Status)
	}
	if result.Envelope.FailureReason != "error_loop" {
		t.Fatalf("expected failure reason error_loop, got %q", result.Envelope.FailureReason)
	}

	warnings := rec.messagesOfType("warning")
	if len(warnings) == 0 {
		t.Fatalf("expected at least one warning broadcast")
	}
}

func TestPingPongWarnsThenKills(t *testing.T) {
	var lines []string
	// 9 alternating calls: the 5th (a.go seen a third time) broadcasts the
	// repetition warning, which also stands for the ping-pong warning tier
	// at the 6th; the ping-pong kill fires at the 8th.
	for i := 0; i < 9; i++ {
		id := fmt.Sprintf("tc-%d", i)
		if i%2 == 0 {
			lines = append(lines, toolCallLine(id, "Read", "a.go"))
		} else {
			lines = append(lines, toolCallLine(id, "Read", "b.go"))
		}
	}

	registry := providers.NewRegistry(nil)
	rec := &recordingProvider{}
	registry.Register(rec)

	rt, _ := newTestRuntime(t, registry)
	rt.AgentBinary = fakeAgentScript(t, lines)

	req := baseRequest(t, rt.AgentBinary)
	id, err := rt.Start(context.Background(), req)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	result, err := rt.Tracker.Await(id)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if result.Envelope.Status != model.DispatchAborted || result.Envelope.FailureReason != "error_loop" {
		t.Fatalf("expected aborted/error_loop, got %s/%s", result.Envelope.Status, result.Envelope.FailureReason)
	}

	warnings := rec.messagesOfType("warning")
	if len(warnings) == 0 {
		t.Fatalf("expected a ping-pong warning before the eventual kill")
	}
}

func TestParentChildDispatchTracksParentID(t *testing.T) {
	lines := []string{
		`{"type":"result","result":"{\"status\":\"success\",\"summary\":\"child done\"}","total_cost_usd":0.01}`,
	}
	registry := providers.NewRegistry(nil)
	rt, _ := newTestRuntime(t, registry)
	rt.AgentBinary = fakeAgentScript(t, lines)

	req := baseRequest(t, rt.AgentBinary)
	req.ParentDispatchID = "parent-123"

	id, err := rt.Start(context.Background(), req)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	result, err := rt.Tracker.Await(id)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if result.Envelope.ParentDispatchID != "parent-123" {
		t.Fatalf("expected parentDispatchId to propagate, got %q", result.Envelope.ParentDispatchID)
	}

	envelope, found, err := rt.Store.GetDispatchEnvelope(req.TaskDir, id)
	if err != nil || !found {
		t.Fatalf("expected dispatch file to exist: found=%v err=%v", found, err)
	}
	if envelope.ParentDispatchID != "parent-123" {
		t.Fatalf("expected dispatch file to carry parentDispatchId, got %q", envelope.ParentDispatchID)
	}
}

func TestExternalCancellationAbortsWithExternalReason(t *testing.T) {
	// Prints one message, then sleeps, giving the test time to call
	// pool.Kill before the process would otherwise exit.
	lines := []string{
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"starting"}]}}`,
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "slow-agent.sh")
	script := "#!/bin/sh\ncat <<'WIREEOF'\n" + lines[0] + "\nWIREEOF\nsleep 5\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	registry := providers.NewRegistry(nil)
	rt, p := newTestRuntime(t, registry)
	rt.AgentBinary = path

	req := baseRequest(t, path)
	id, err := rt.Start(context.Background(), req)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Give the subprocess a moment to print its first message.
	time.Sleep(150 * time.Millisecond)
	p.Kill(id)

	result, err := rt.Tracker.Await(id)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if result.Envelope.Status != model.DispatchAborted {
		t.Fatalf("expected aborted, got %s", result.Envelope.Status)
	}
	if result.Envelope.FailureReason != "external" {
		t.Fatalf("expected failure reason external, got %q", result.Envelope.FailureReason)
	}
}

func TestPoolAtCapacityRejectsWithoutCreatingDispatchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slow-agent.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nsleep 5\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	registry := providers.NewRegistry(nil)
	boundedPool := pool.New(1)
	rt := New(runner.New(), dispatchstore.New(), boundedPool, pool.NewTracker(), registry, nil, nil, "default-model", nil)
	rt.AgentBinary = path

	first := baseRequest(t, path)
	firstID, err := rt.Start(context.Background(), first)
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer boundedPool.Kill(firstID)

	second := baseRequest(t, path)
	if _, err := rt.Start(context.Background(), second); err != pool.ErrAtCapacity {
		t.Fatalf("expected ErrAtCapacity, got %v", err)
	}
	if envelopes, err := rt.Store.GetDispatchEnvelopes(second.TaskDir); err != nil || len(envelopes) != 0 {
		t.Fatalf("expected no dispatch file for the rejected request, got %d (err %v)", len(envelopes), err)
	}
}
