package corridor

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeBackend struct {
	previewCalls       int
	guestPreviewCalls  int
	claimCalls         int
	generateCalls      int
	guestGenerateCalls int
	latestCalls        int

	claimErr    error
	generateErr error
	latest      *Design

	lastClaimToken string

	onCreateGuestPreview func()
	onClaim              func()
	onGenerate           func()
}

func (f *fakeBackend) CreatePreview(ctx context.Context, input StartInput) (*PreviewOrder, error) {
	f.previewCalls++
	return &PreviewOrder{OrderID: 100, OrderNo: "TL100"}, nil
}

func (f *fakeBackend) CreateGuestPreview(ctx context.Context, input StartInput) (*PreviewOrder, error) {
	f.guestPreviewCalls++
	if f.onCreateGuestPreview != nil {
		f.onCreateGuestPreview()
	}
	return &PreviewOrder{OrderID: 200, OrderNo: "TL200", GuestToken: "tok-abc"}, nil
}

func (f *fakeBackend) ClaimPreview(ctx context.Context, orderID uint, guestToken string) error {
	f.claimCalls++
	f.lastClaimToken = guestToken
	if f.onClaim != nil {
		f.onClaim()
	}
	return f.claimErr
}

func (f *fakeBackend) GenerateDesign(ctx context.Context, orderID uint, prompt, style string) (*Design, error) {
	f.generateCalls++
	if f.onGenerate != nil {
		f.onGenerate()
	}
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return &Design{DesignID: 31, ImageURL: "https://cdn.example.com/31.png"}, nil
}

func (f *fakeBackend) GenerateGuestDesign(ctx context.Context, orderID uint, guestToken, prompt, style string) (*Design, error) {
	f.guestGenerateCalls++
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return &Design{DesignID: 32, ImageURL: "https://cdn.example.com/32.png"}, nil
}

func (f *fakeBackend) LatestDesign(ctx context.Context, orderID uint) (*Design, error) {
	f.latestCalls++
	return f.latest, nil
}

func instantSleep(ctx context.Context, d time.Duration) {}

func startInput() StartInput {
	return StartInput{Prompt: "fox in a suit", ProductID: 1, Tier: "BASIC", Quantity: 1}
}

func TestStartAuthedRunsToCompletion(t *testing.T) {
	backend := &fakeBackend{}
	m := NewMachine(backend, nil, WithSleep(instantSleep))

	if err := m.Start(context.Background(), startInput(), true); err != nil {
		t.Fatalf("authed start failed: %v", err)
	}

	state := m.Snapshot()
	if state.Phase != PhaseCompleting || state.Stage != StageFinished {
		t.Fatalf("want COMPLETING/finished got %s/%s", state.Phase, state.Stage)
	}
	if state.OrderID != 100 || state.DesignID != 31 {
		t.Fatalf("snapshot not filled: %+v", state)
	}
	if state.WasGuest {
		t.Fatalf("authed run must not be marked as guest")
	}
	if !state.PreviewRequested || !state.GenerateRequested {
		t.Fatalf("request markers should be set: %+v", state)
	}
	if backend.guestPreviewCalls != 0 {
		t.Fatalf("authed path must not touch the guest endpoint")
	}
}

func TestStartGuestPausesForAuth(t *testing.T) {
	backend := &fakeBackend{}
	m := NewMachine(backend, nil, WithSleep(instantSleep))

	if err := m.Start(context.Background(), startInput(), false); err != nil {
		t.Fatalf("guest start failed: %v", err)
	}

	state := m.Snapshot()
	if state.Phase != PhaseAuthPaused || state.Stage != StageAwaitingKey {
		t.Fatalf("want AUTH_PAUSED/awaiting_sign_in got %s/%s", state.Phase, state.Stage)
	}
	if state.GuestToken != "tok-abc" {
		t.Fatalf("guest token should be kept until claim, got %q", state.GuestToken)
	}
	if state.DesignID != 32 {
		t.Fatalf("guest design should be recorded, got %d", state.DesignID)
	}
	if !state.WasGuest {
		t.Fatalf("guest run must be marked as guest")
	}
	if backend.claimCalls != 0 {
		t.Fatalf("claim must wait for sign-in")
	}
}

func TestResumeAfterAuthClaimsAndFinishes(t *testing.T) {
	backend := &fakeBackend{}
	m := NewMachine(backend, nil, WithSleep(instantSleep))

	if err := m.Start(context.Background(), startInput(), false); err != nil {
		t.Fatalf("guest start failed: %v", err)
	}
	if err := m.ResumeAfterAuth(context.Background()); err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	state := m.Snapshot()
	if state.Phase != PhaseCompleting || state.Stage != StageFinished {
		t.Fatalf("want COMPLETING/finished got %s/%s", state.Phase, state.Stage)
	}
	if state.GuestToken != "" {
		t.Fatalf("guest token must be cleared after claim")
	}
	if backend.lastClaimToken != "tok-abc" {
		t.Fatalf("claim should use the issued token, got %q", backend.lastClaimToken)
	}
	if !state.ClaimRequested {
		t.Fatalf("claim marker should be set")
	}
	// 设计已在游客阶段生成，恢复时不再补拉
	if backend.latestCalls != 0 || backend.generateCalls != 0 {
		t.Fatalf("existing design must not be refetched, latest=%d generate=%d", backend.latestCalls, backend.generateCalls)
	}

	// 完成后再次恢复无效
	if err := m.ResumeAfterAuth(context.Background()); !errors.Is(err, ErrNotResumable) {
		t.Fatalf("second resume want ErrNotResumable got %v", err)
	}
}

func TestResumeAfterAuthOnlyForGuestRuns(t *testing.T) {
	backend := &fakeBackend{}
	m := NewMachine(backend, nil, WithSleep(instantSleep))

	if err := m.ResumeAfterAuth(context.Background()); !errors.Is(err, ErrNotResumable) {
		t.Fatalf("idle resume want ErrNotResumable got %v", err)
	}

	if err := m.Start(context.Background(), startInput(), true); err != nil {
		t.Fatalf("authed start failed: %v", err)
	}
	if err := m.ResumeAfterAuth(context.Background()); !errors.Is(err, ErrNotResumable) {
		t.Fatalf("authed run resume want ErrNotResumable got %v", err)
	}
}

func TestResumeAfterAuthRejectsReentry(t *testing.T) {
	backend := &fakeBackend{}
	m := NewMachine(backend, nil, WithSleep(instantSleep))

	if err := m.Start(context.Background(), startInput(), false); err != nil {
		t.Fatalf("guest start failed: %v", err)
	}

	var reentryErr error
	backend.onClaim = func() {
		reentryErr = m.ResumeAfterAuth(context.Background())
	}
	if err := m.ResumeAfterAuth(context.Background()); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if !errors.Is(reentryErr, ErrResumeInFlight) {
		t.Fatalf("reentry want ErrResumeInFlight got %v", reentryErr)
	}
	if backend.claimCalls != 1 {
		t.Fatalf("claim must run once, got %d", backend.claimCalls)
	}
}

func TestResumeRefetchesDesignWhenMissing(t *testing.T) {
	backend := &fakeBackend{latest: &Design{DesignID: 77, ImageURL: "https://cdn.example.com/77.png"}}
	store := NewMemoryStore(0)
	if err := store.Save(State{
		Phase:      PhaseAuthPaused,
		Stage:      StageAwaitingKey,
		Input:      startInput(),
		OrderID:    200,
		GuestToken: "tok-abc",
		WasGuest:   true,
	}); err != nil {
		t.Fatalf("seed store failed: %v", err)
	}

	m := NewMachine(backend, store, WithSleep(instantSleep))
	if err := m.ResumeAfterAuth(context.Background()); err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	state := m.Snapshot()
	if state.DesignID != 77 {
		t.Fatalf("latest design should be fetched, got %d", state.DesignID)
	}
	if backend.latestCalls != 1 {
		t.Fatalf("latest design lookup expected once, got %d", backend.latestCalls)
	}
	if backend.generateCalls != 0 {
		t.Fatalf("no regeneration needed when a design exists")
	}
}

func TestResumeRegeneratesWhenNoDesignAnywhere(t *testing.T) {
	backend := &fakeBackend{}
	store := NewMemoryStore(0)
	if err := store.Save(State{
		Phase:      PhaseAuthPaused,
		Stage:      StageAwaitingKey,
		Input:      startInput(),
		OrderID:    200,
		GuestToken: "tok-abc",
		WasGuest:   true,
	}); err != nil {
		t.Fatalf("seed store failed: %v", err)
	}

	m := NewMachine(backend, store, WithSleep(instantSleep))
	if err := m.ResumeAfterAuth(context.Background()); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if backend.generateCalls != 1 {
		t.Fatalf("missing design should trigger one regeneration, got %d", backend.generateCalls)
	}
	if m.Snapshot().DesignID != 31 {
		t.Fatalf("regenerated design should be recorded")
	}
}

func TestNewerStartSupersedesOldRun(t *testing.T) {
	backend := &fakeBackend{}
	m := NewMachine(backend, nil, WithSleep(instantSleep))

	started := false
	backend.onCreateGuestPreview = func() {
		if started {
			return
		}
		started = true
		// 旧 run 还挂在网络调用上时用户重新开跑
		if err := m.Start(context.Background(), startInput(), true); err != nil {
			t.Fatalf("second start failed: %v", err)
		}
	}

	err := m.Start(context.Background(), startInput(), false)
	if !errors.Is(err, ErrRunSuperseded) {
		t.Fatalf("old run want ErrRunSuperseded got %v", err)
	}

	// 终态属于新一轮：登录路径完成，不带游客痕迹
	state := m.Snapshot()
	if state.Phase != PhaseCompleting || state.Stage != StageFinished {
		t.Fatalf("new run should own the final state, got %s/%s", state.Phase, state.Stage)
	}
	if state.WasGuest || state.GuestToken != "" {
		t.Fatalf("stale guest continuation must not leak into the new run: %+v", state)
	}
	if state.OrderID != 100 {
		t.Fatalf("order id should come from the new run, got %d", state.OrderID)
	}
}

func TestStageDwellWaitsOutRemainingTime(t *testing.T) {
	backend := &fakeBackend{}

	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	var slept []time.Duration
	sleep := func(_ context.Context, d time.Duration) {
		slept = append(slept, d)
		now = now.Add(d)
	}
	// 生成调用本身耗时 600ms
	backend.onGenerate = func() { now = now.Add(600 * time.Millisecond) }

	m := NewMachine(backend, nil,
		WithClock(clock),
		WithSleep(sleep),
		WithMinDwell(900*time.Millisecond))

	if err := m.Start(context.Background(), startInput(), true); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if len(slept) != 2 {
		t.Fatalf("expected two dwell waits, got %v", slept)
	}
	if slept[0] != 900*time.Millisecond {
		t.Fatalf("first dwell want 900ms got %v", slept[0])
	}
	// 已经过去 600ms，只需补足 300ms
	if slept[1] != 300*time.Millisecond {
		t.Fatalf("second dwell want 300ms got %v", slept[1])
	}
}

func TestBackendFailureEntersErrorPhase(t *testing.T) {
	backend := &fakeBackend{generateErr: errors.New("image service down")}
	m := NewMachine(backend, nil, WithSleep(instantSleep))

	err := m.Start(context.Background(), startInput(), true)
	if err == nil || errors.Is(err, ErrRunSuperseded) {
		t.Fatalf("backend failure should surface, got %v", err)
	}

	state := m.Snapshot()
	if state.Phase != PhaseError {
		t.Fatalf("phase want ERROR got %s", state.Phase)
	}
	if state.LastError == "" {
		t.Fatalf("last error should be recorded")
	}

	// Reset 后可重新开跑
	m.Reset()
	if got := m.Snapshot(); got.Phase != PhaseIdle || got.LastError != "" {
		t.Fatalf("reset should return to idle, got %+v", got)
	}
	backend.generateErr = nil
	if err := m.Start(context.Background(), startInput(), true); err != nil {
		t.Fatalf("restart after reset failed: %v", err)
	}
}

func TestStatePersistsAcrossMachines(t *testing.T) {
	backend := &fakeBackend{}
	store := NewMemoryStore(time.Hour)

	first := NewMachine(backend, store, WithSleep(instantSleep))
	if err := first.Start(context.Background(), startInput(), false); err != nil {
		t.Fatalf("guest start failed: %v", err)
	}

	// 模拟刷新：新实例从存储恢复并接着走完
	second := NewMachine(backend, store, WithSleep(instantSleep))
	restored := second.Snapshot()
	if restored.Phase != PhaseAuthPaused || restored.GuestToken != "tok-abc" {
		t.Fatalf("state should be restored from the store: %+v", restored)
	}
	if err := second.ResumeAfterAuth(context.Background()); err != nil {
		t.Fatalf("resume on restored machine failed: %v", err)
	}
	if second.Snapshot().Stage != StageFinished {
		t.Fatalf("restored run should finish")
	}
}
