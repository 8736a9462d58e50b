package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/G1r1shCodes/BimaBot/internal/application/dispatcher"
	"github.com/G1r1shCodes/BimaBot/internal/application/port"
	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
	"github.com/G1r1shCodes/BimaBot/internal/domain/event"
	domainwf "github.com/G1r1shCodes/BimaBot/internal/domain/workflow"
)

// Mock implementations

type mockSessionRepo struct {
	sessions  map[string]*entity.AuditSession
	updateErr error
	getErr    error
}

func newMockSessionRepo(sessions ...*entity.AuditSession) *mockSessionRepo {
	m := &mockSessionRepo{sessions: make(map[string]*entity.AuditSession)}
	for _, s := range sessions {
		m.sessions[s.ID] = s
	}
	return m
}

func (m *mockSessionRepo) Create(ctx context.Context, session *entity.AuditSession) error {
	m.sessions[session.ID] = session
	return nil
}

func (m *mockSessionRepo) GetByID(ctx context.Context, id string) (*entity.AuditSession, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (m *mockSessionRepo) AttachDocument(ctx context.Context, id string, kind entity.DocumentKind, ref *entity.DocumentRef) error {
	return nil
}

func (m *mockSessionRepo) UpdateStatus(ctx context.Context, id, from, to string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	s, ok := m.sessions[id]
	if !ok {
		return entity.ErrSessionNotFound
	}
	if s.Status != from {
		return entity.ErrStatusConflict
	}
	s.Status = to
	return nil
}

func (m *mockSessionRepo) UpdateProgress(ctx context.Context, id string, progress entity.Progress) error {
	return nil
}

func (m *mockSessionRepo) SaveResult(ctx context.Context, id string, result *port.AuditResult) error {
	return nil
}

func (m *mockSessionRepo) SaveFailure(ctx context.Context, id string, failure entity.Failure) error {
	return nil
}

func (m *mockSessionRepo) List(ctx context.Context, limit, offset int) ([]*entity.AuditSession, error) {
	return nil, nil
}

func (m *mockSessionRepo) ListByStatus(ctx context.Context, status string) ([]*entity.AuditSession, error) {
	return nil, nil
}

// mockTxManager snapshots statuses and restores them when fn fails
type mockTxManager struct {
	repo  *mockSessionRepo
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	saved := make(map[string]string, len(m.repo.sessions))
	for id, s := range m.repo.sessions {
		saved[id] = s.Status
	}
	if err := fn(ctx); err != nil {
		for id, status := range saved {
			m.repo.sessions[id].Status = status
		}
		return err
	}
	return nil
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {}

func (m *mockDispatcher) Unsubscribe(eventType event.Type, name string) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	_ = m.Dispatch(ctx, evt)
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo {
	return nil
}

func (m *mockDispatcher) Close() error {
	return nil
}

func (m *mockDispatcher) types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event.Type, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

func readySession(id, status string) *entity.AuditSession {
	return &entity.AuditSession{
		ID:             id,
		Status:         status,
		BillDocument:   &entity.DocumentRef{Path: id + "/bill.pdf"},
		PolicyDocument: &entity.DocumentRef{Path: id + "/policy.pdf"},
	}
}

func newTestEngine(sessions ...*entity.AuditSession) (SessionWorkflow, *mockSessionRepo, *mockTxManager, *mockDispatcher) {
	repo := newMockSessionRepo(sessions...)
	tx := &mockTxManager{repo: repo}
	disp := &mockDispatcher{}
	return NewEngine(repo, tx, WithDispatcher(disp)), repo, tx, disp
}

// Tests

func TestBuildSessionStateMachine(t *testing.T) {
	ready := func(context.Context) bool { return true }
	notReady := func(context.Context) bool { return false }

	tests := []struct {
		name      string
		initial   domainwf.State
		guard     domainwf.GuardFunc
		trigger   domainwf.Trigger
		wantState domainwf.State
		wantErr   error
	}{
		{"complete when ready", domainwf.StateCreated, ready, domainwf.TriggerComplete, domainwf.StateProcessing, nil},
		{"complete when not ready", domainwf.StateCreated, notReady, domainwf.TriggerComplete, domainwf.StateCreated, domainwf.ErrGuardFailed},
		{"succeed from processing", domainwf.StateProcessing, ready, domainwf.TriggerSucceed, domainwf.StateCompleted, nil},
		{"fail from processing", domainwf.StateProcessing, ready, domainwf.TriggerFail, domainwf.StateFailed, nil},
		{"succeed from created", domainwf.StateCreated, ready, domainwf.TriggerSucceed, domainwf.StateCreated, domainwf.ErrInvalidTransition},
		{"complete from completed", domainwf.StateCompleted, ready, domainwf.TriggerComplete, domainwf.StateCompleted, domainwf.ErrInvalidTransition},
		{"fail from failed", domainwf.StateFailed, ready, domainwf.TriggerFail, domainwf.StateFailed, domainwf.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := BuildSessionStateMachine(tt.initial, tt.guard)
			err := sm.Fire(context.Background(), tt.trigger)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Fire() error = %v, want %v", err, tt.wantErr)
			}
			if sm.State() != tt.wantState {
				t.Errorf("State() = %v, want %v", sm.State(), tt.wantState)
			}
		})
	}
}

func TestEngineTransitionComplete(t *testing.T) {
	engine, repo, _, disp := newTestEngine(readySession("AUD-00000001", entity.StatusCreated))

	state, err := engine.Transition(context.Background(), "AUD-00000001", domainwf.TriggerComplete, nil)
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if state != domainwf.StateProcessing {
		t.Errorf("state = %v, want processing", state)
	}
	if got := repo.sessions["AUD-00000001"].Status; got != entity.StatusProcessing {
		t.Errorf("stored status = %q, want processing", got)
	}

	types := disp.types()
	if len(types) != 1 || types[0] != event.TypeStatusChanged {
		t.Fatalf("events = %v, want [status_changed]", types)
	}
	evt := disp.events[0]
	if evt.GetPayloadString(event.KeyFromStatus) != "created" || evt.GetPayloadString(event.KeyToStatus) != "processing" {
		t.Errorf("payload = %v", evt.Payload)
	}
}

func TestEngineTransitionTerminalEvents(t *testing.T) {
	tests := []struct {
		name     string
		trigger  domainwf.Trigger
		wantType event.Type
	}{
		{"succeed", domainwf.TriggerSucceed, event.TypeSessionCompleted},
		{"fail", domainwf.TriggerFail, event.TypeSessionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _, _, disp := newTestEngine(readySession("AUD-00000002", entity.StatusProcessing))

			if _, err := engine.Transition(context.Background(), "AUD-00000002", tt.trigger, nil); err != nil {
				t.Fatalf("Transition() error = %v", err)
			}

			types := disp.types()
			if len(types) != 2 || types[0] != event.TypeStatusChanged || types[1] != tt.wantType {
				t.Errorf("events = %v, want [status_changed %s]", types, tt.wantType)
			}
		})
	}
}

func TestEngineTransitionGuardFailure(t *testing.T) {
	session := readySession("AUD-00000003", entity.StatusCreated)
	session.PolicyDocument = nil
	engine, repo, _, disp := newTestEngine(session)

	_, err := engine.Transition(context.Background(), "AUD-00000003", domainwf.TriggerComplete, nil)

	var pe *entity.PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want PreconditionError", err)
	}
	if pe.Reason != "policy document must be uploaded before completion" {
		t.Errorf("reason = %q", pe.Reason)
	}
	if repo.sessions["AUD-00000003"].Status != entity.StatusCreated {
		t.Error("status must be unchanged")
	}
	if len(disp.types()) != 0 {
		t.Error("no events expected on failed transition")
	}
}

func TestEngineTransitionInvalidFromTerminal(t *testing.T) {
	for _, status := range []string{entity.StatusCompleted, entity.StatusFailed} {
		t.Run(status, func(t *testing.T) {
			engine, repo, _, _ := newTestEngine(readySession("AUD-00000004", status))

			for _, trigger := range []domainwf.Trigger{domainwf.TriggerComplete, domainwf.TriggerSucceed, domainwf.TriggerFail} {
				_, err := engine.Transition(context.Background(), "AUD-00000004", trigger, nil)
				if !errors.Is(err, domainwf.ErrInvalidTransition) {
					t.Errorf("%s: error = %v, want ErrInvalidTransition", trigger, err)
				}
			}
			if repo.sessions["AUD-00000004"].Status != status {
				t.Error("terminal status must not change")
			}
		})
	}
}

func TestEngineTransitionWithinRollsBack(t *testing.T) {
	engine, repo, tx, disp := newTestEngine(readySession("AUD-00000005", entity.StatusProcessing))
	saveErr := errors.New("disk full")

	var sawStatus string
	_, err := engine.Transition(context.Background(), "AUD-00000005", domainwf.TriggerSucceed, func(txCtx context.Context) error {
		sawStatus = repo.sessions["AUD-00000005"].Status
		return saveErr
	})

	if !errors.Is(err, saveErr) {
		t.Fatalf("error = %v, want %v", err, saveErr)
	}
	if sawStatus != entity.StatusCompleted {
		t.Errorf("within ran with status %q, want completed", sawStatus)
	}
	if repo.sessions["AUD-00000005"].Status != entity.StatusProcessing {
		t.Error("status change must roll back with the failed write")
	}
	if tx.calls != 1 {
		t.Errorf("transactions = %d, want 1", tx.calls)
	}
	if len(disp.types()) != 0 {
		t.Error("no events expected after rollback")
	}
}

func TestEngineTransitionNotFound(t *testing.T) {
	engine, _, _, _ := newTestEngine()

	_, err := engine.Transition(context.Background(), "AUD-MISSING0", domainwf.TriggerComplete, nil)
	if !errors.Is(err, entity.ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestEngineTransitionStatusConflict(t *testing.T) {
	engine, repo, _, _ := newTestEngine(readySession("AUD-00000006", entity.StatusCreated))
	repo.updateErr = entity.ErrStatusConflict

	_, err := engine.Transition(context.Background(), "AUD-00000006", domainwf.TriggerComplete, nil)
	if !errors.Is(err, entity.ErrStatusConflict) {
		t.Errorf("error = %v, want ErrStatusConflict", err)
	}
}

func TestEngineCurrentState(t *testing.T) {
	engine, repo, _, _ := newTestEngine(readySession("AUD-00000007", entity.StatusProcessing))

	state, err := engine.CurrentState(context.Background(), "AUD-00000007")
	if err != nil {
		t.Fatalf("CurrentState() error = %v", err)
	}
	if state != domainwf.StateProcessing {
		t.Errorf("state = %v, want processing", state)
	}

	repo.sessions["AUD-00000007"].Status = "archived"
	if _, err := engine.CurrentState(context.Background(), "AUD-00000007"); !errors.Is(err, domainwf.ErrInvalidState) {
		t.Errorf("error = %v, want ErrInvalidState", err)
	}
}

func TestEngineWithoutDispatcher(t *testing.T) {
	repo := newMockSessionRepo(readySession("AUD-00000008", entity.StatusCreated))
	engine := NewEngine(repo, &mockTxManager{repo: repo})

	if _, err := engine.Transition(context.Background(), "AUD-00000008", domainwf.TriggerComplete, nil); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
}
