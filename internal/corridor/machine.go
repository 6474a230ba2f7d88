package corridor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/teelab-next/internal/logger"
)

// Phase 走廊阶段
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseRunning    Phase = "RUNNING"
	PhaseAuthPaused Phase = "AUTH_PAUSED"
	PhaseResuming   Phase = "RESUMING"
	PhaseCompleting Phase = "COMPLETING"
	PhaseError      Phase = "ERROR"
)

// Stage 叙事步骤，逐步推进且有最小停留时间
type Stage string

const (
	StageNone        Stage = ""
	StageCreating    Stage = "creating_order"
	StageGenerating  Stage = "generating_design"
	StageAwaitingKey Stage = "awaiting_sign_in"
	StageClaiming    Stage = "claiming_order"
	StageFinished    Stage = "finished"
)

var (
	ErrRunSuperseded  = errors.New("corridor run superseded by a newer start")
	ErrNotResumable   = errors.New("corridor is not in a resumable phase")
	ErrResumeInFlight = errors.New("corridor resume already in flight")
)

// StartInput 启动入参（提示词与款式选择在 start 时刻快照）
type StartInput struct {
	Prompt    string `json:"prompt"`
	Style     string `json:"style"`
	ProductID uint   `json:"product_id"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Tier      string `json:"tier"`
	Quantity  int    `json:"quantity"`
}

// PreviewOrder 预览订单快照
type PreviewOrder struct {
	OrderID    uint
	OrderNo    string
	GuestToken string
}

// Design 设计快照
type Design struct {
	DesignID uint
	ImageURL string
}

// Backend 走廊依赖的服务端契约
type Backend interface {
	CreatePreview(ctx context.Context, input StartInput) (*PreviewOrder, error)
	CreateGuestPreview(ctx context.Context, input StartInput) (*PreviewOrder, error)
	ClaimPreview(ctx context.Context, orderID uint, guestToken string) error
	GenerateDesign(ctx context.Context, orderID uint, prompt, style string) (*Design, error)
	GenerateGuestDesign(ctx context.Context, orderID uint, guestToken, prompt, style string) (*Design, error)
	LatestDesign(ctx context.Context, orderID uint) (*Design, error)
}

// State 可序列化的走廊状态，持久化后刷新/跳转不丢失
type State struct {
	Phase Phase `json:"phase"`
	Stage Stage `json:"stage"`

	Input StartInput `json:"input"`

	OrderID    uint   `json:"order_id"`
	GuestToken string `json:"guest_token"`
	DesignID   uint   `json:"design_id"`
	ImageURL   string `json:"image_url"`

	WasGuest          bool `json:"was_guest"`
	PreviewRequested  bool `json:"preview_requested"`
	GenerateRequested bool `json:"generate_requested"`
	ClaimRequested    bool `json:"claim_requested"`

	LastError string `json:"last_error,omitempty"`
}

// Machine 走廊状态机
// 单线程协作式：挂起点只有网络调用与步骤停留计时；
// 旧 run id 的延续只会静默失效，不会破坏新一轮的状态。
type Machine struct {
	mu      sync.Mutex
	backend Backend
	store   Store

	clock func() time.Time
	sleep func(context.Context, time.Duration)

	minDwell time.Duration

	state        State
	runSeq       uint64
	stageEntered time.Time

	resumeInFlight bool
}

// Option 状态机可选配置
type Option func(*Machine)

// WithClock 注入时钟（测试用）
func WithClock(clock func() time.Time) Option {
	return func(m *Machine) { m.clock = clock }
}

// WithSleep 注入等待实现（测试用）
func WithSleep(sleep func(context.Context, time.Duration)) Option {
	return func(m *Machine) { m.sleep = sleep }
}

// WithMinDwell 设置步骤最小停留时间
func WithMinDwell(d time.Duration) Option {
	return func(m *Machine) { m.minDwell = d }
}

// NewMachine 创建走廊状态机，会尝试从持久化存储恢复草稿
func NewMachine(backend Backend, store Store, opts ...Option) *Machine {
	m := &Machine{
		backend:  backend,
		store:    store,
		clock:    time.Now,
		minDwell: 900 * time.Millisecond,
		state:    State{Phase: PhaseIdle},
	}
	m.sleep = func(ctx context.Context, d time.Duration) {
		if d <= 0 {
			return
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	if store != nil {
		if saved, ok, err := store.Load(); err == nil && ok && saved != nil {
			m.state = *saved
		} else if err != nil {
			logger.Warnw("corridor_state_restore_failed", "error", err)
		}
	}
	return m
}

// Snapshot 返回当前状态副本
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reset 回到空闲并清除持久化草稿
func (m *Machine) Reset() {
	m.mu.Lock()
	m.runSeq++
	m.state = State{Phase: PhaseIdle}
	m.resumeInFlight = false
	m.mu.Unlock()
	if m.store != nil {
		if err := m.store.Clear(); err != nil {
			logger.Warnw("corridor_state_clear_failed", "error", err)
		}
	}
}

// Start 启动一轮走廊。已登录路径一路跑到完成；
// 游客路径生成设计后暂停在 AUTH_PAUSED 等待登录。
func (m *Machine) Start(ctx context.Context, input StartInput, authed bool) error {
	m.mu.Lock()
	m.runSeq++
	run := m.runSeq
	m.state = State{
		Phase:    PhaseRunning,
		Stage:    StageCreating,
		Input:    input,
		WasGuest: !authed,
	}
	m.stageEntered = m.clock()
	m.resumeInFlight = false
	m.mu.Unlock()
	m.persist()

	if authed {
		return m.runAuthedPath(ctx, run)
	}
	return m.runGuestPath(ctx, run)
}

func (m *Machine) runAuthedPath(ctx context.Context, run uint64) error {
	m.markRequested(run, func(s *State) { s.PreviewRequested = true })
	order, err := m.backend.CreatePreview(ctx, m.currentInput())
	if err != nil {
		return m.fail(run, err)
	}
	if !m.applyIfCurrent(run, func(s *State) {
		s.OrderID = order.OrderID
	}) {
		return ErrRunSuperseded
	}

	if err := m.advanceStage(ctx, run, StageGenerating); err != nil {
		return err
	}

	m.markRequested(run, func(s *State) { s.GenerateRequested = true })
	state := m.Snapshot()
	design, err := m.backend.GenerateDesign(ctx, state.OrderID, state.Input.Prompt, state.Input.Style)
	if err != nil {
		return m.fail(run, err)
	}
	if !m.applyIfCurrent(run, func(s *State) {
		s.DesignID = design.DesignID
		s.ImageURL = design.ImageURL
	}) {
		return ErrRunSuperseded
	}

	return m.finish(ctx, run)
}

func (m *Machine) runGuestPath(ctx context.Context, run uint64) error {
	m.markRequested(run, func(s *State) { s.PreviewRequested = true })
	order, err := m.backend.CreateGuestPreview(ctx, m.currentInput())
	if err != nil {
		return m.fail(run, err)
	}
	if !m.applyIfCurrent(run, func(s *State) {
		s.OrderID = order.OrderID
		s.GuestToken = order.GuestToken
	}) {
		return ErrRunSuperseded
	}

	if err := m.advanceStage(ctx, run, StageGenerating); err != nil {
		return err
	}

	m.markRequested(run, func(s *State) { s.GenerateRequested = true })
	state := m.Snapshot()
	design, err := m.backend.GenerateGuestDesign(ctx, state.OrderID, state.GuestToken, state.Input.Prompt, state.Input.Style)
	if err != nil {
		return m.fail(run, err)
	}
	if !m.applyIfCurrent(run, func(s *State) {
		s.DesignID = design.DesignID
		s.ImageURL = design.ImageURL
	}) {
		return ErrRunSuperseded
	}

	// 游客路径到此暂停，等待登录后由恢复效应接力
	if err := m.advanceStage(ctx, run, StageAwaitingKey); err != nil {
		return err
	}
	if !m.applyIfCurrent(run, func(s *State) {
		s.Phase = PhaseAuthPaused
	}) {
		return ErrRunSuperseded
	}
	m.persist()
	return nil
}

// ResumeAfterAuth 登录成功后的恢复效应：
// 仅在 wasGuest 且阶段为 AUTH_PAUSED/RESUMING 时触发，in-flight 标记防止并发重入。
func (m *Machine) ResumeAfterAuth(ctx context.Context) error {
	m.mu.Lock()
	if !m.state.WasGuest || (m.state.Phase != PhaseAuthPaused && m.state.Phase != PhaseResuming) {
		m.mu.Unlock()
		return ErrNotResumable
	}
	if m.resumeInFlight {
		m.mu.Unlock()
		return ErrResumeInFlight
	}
	m.resumeInFlight = true
	run := m.runSeq
	m.state.Phase = PhaseResuming
	m.state.Stage = StageClaiming
	m.stageEntered = m.clock()
	orderID := m.state.OrderID
	guestToken := m.state.GuestToken
	m.mu.Unlock()
	m.persist()

	defer func() {
		m.mu.Lock()
		m.resumeInFlight = false
		m.mu.Unlock()
	}()

	m.markRequested(run, func(s *State) { s.ClaimRequested = true })
	if err := m.backend.ClaimPreview(ctx, orderID, guestToken); err != nil {
		return m.fail(run, err)
	}
	if !m.applyIfCurrent(run, func(s *State) {
		s.GuestToken = ""
	}) {
		return ErrRunSuperseded
	}

	// 已有设计直接取回，没有则在登录态补一次生成
	state := m.Snapshot()
	if state.DesignID == 0 {
		design, err := m.backend.LatestDesign(ctx, orderID)
		if err != nil {
			return m.fail(run, err)
		}
		if design == nil {
			design, err = m.backend.GenerateDesign(ctx, orderID, state.Input.Prompt, state.Input.Style)
			if err != nil {
				return m.fail(run, err)
			}
		}
		if !m.applyIfCurrent(run, func(s *State) {
			s.DesignID = design.DesignID
			s.ImageURL = design.ImageURL
		}) {
			return ErrRunSuperseded
		}
	}

	return m.finish(ctx, run)
}

// finish 推进到收尾步骤并标记完成
func (m *Machine) finish(ctx context.Context, run uint64) error {
	if !m.applyIfCurrent(run, func(s *State) {
		s.Phase = PhaseCompleting
	}) {
		return ErrRunSuperseded
	}
	if err := m.advanceStage(ctx, run, StageFinished); err != nil {
		return err
	}
	m.persist()
	return nil
}

// advanceStage 等满最小停留时间后切换步骤
func (m *Machine) advanceStage(ctx context.Context, run uint64, next Stage) error {
	m.mu.Lock()
	entered := m.stageEntered
	m.mu.Unlock()

	elapsed := m.clock().Sub(entered)
	if wait := m.minDwell - elapsed; wait > 0 {
		m.sleep(ctx, wait)
	}

	if !m.applyIfCurrent(run, func(s *State) {
		s.Stage = next
	}) {
		return ErrRunSuperseded
	}
	m.mu.Lock()
	m.stageEntered = m.clock()
	m.mu.Unlock()
	m.persist()
	return nil
}

// applyIfCurrent 仅当 run id 未被取代时才改写状态
func (m *Machine) applyIfCurrent(run uint64, mutate func(*State)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run != m.runSeq {
		return false
	}
	mutate(&m.state)
	return true
}

func (m *Machine) markRequested(run uint64, mutate func(*State)) {
	if m.applyIfCurrent(run, mutate) {
		m.persist()
	}
}

func (m *Machine) currentInput() StartInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Input
}

func (m *Machine) fail(run uint64, err error) error {
	if m.applyIfCurrent(run, func(s *State) {
		s.Phase = PhaseError
		s.LastError = err.Error()
	}) {
		m.persist()
		return err
	}
	return ErrRunSuperseded
}

func (m *Machine) persist() {
	if m.store == nil {
		return
	}
	state := m.Snapshot()
	if err := m.store.Save(state); err != nil {
		logger.Warnw("corridor_state_save_failed", "error", err)
	}
}
