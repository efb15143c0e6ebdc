package form

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/model"
)

// Phase は送信操作の状態。
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseInProgress Phase = "in_progress"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// ActionState は1つの操作の状態と表示用のバナー。
type ActionState struct {
	Phase   Phase             `json:"phase"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	At      time.Time         `json:"at"`
}

// Busy は処理中で操作ボタンを無効にすべきかを返す。
// 完了後（成功・失敗）はfalseになり、再送信できる。
func (s ActionState) Busy() bool {
	return s.Phase == PhaseInProgress
}

// ActionTracker は1訪問者分の送信操作（login, register, checkout等）の状態を管理する。
type ActionTracker struct {
	mu     sync.Mutex
	states map[string]ActionState
	now    func() time.Time
}

// NewActionTracker はActionTrackerを生成する。
func NewActionTracker() *ActionTracker {
	return &ActionTracker{
		states: make(map[string]ActionState),
		now:    time.Now,
	}
}

// Begin は操作を処理中にする。同じ操作が処理中の場合はACTION_IN_PROGRESSのエラーを返す。
func (t *ActionTracker) Begin(action string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.states[action].Busy() {
		return model.NewActionInProgressError(action)
	}
	t.states[action] = ActionState{Phase: PhaseInProgress, At: t.now()}
	return nil
}

// Settle は操作を完了状態にし、成功または失敗のバナーを記録する。
func (t *ActionTracker) Settle(action string, err error, successMessage string) ActionState {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := ActionState{Phase: PhaseSucceeded, Message: successMessage, At: t.now()}
	if err != nil {
		s.Phase = PhaseFailed
		s.Message, s.Fields = Banner(err)
	}
	t.states[action] = s
	return s
}

// State は操作の現在の状態を返す。未実行の操作はidle。
func (t *ActionTracker) State(action string) ActionState {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.states[action]
	if !ok {
		return ActionState{Phase: PhaseIdle}
	}
	return s
}

// Run はBeginしてからfnを実行し、結果でSettleする。
func (t *ActionTracker) Run(ctx context.Context, action, successMessage string, fn func(ctx context.Context) error) error {
	if err := t.Begin(action); err != nil {
		return err
	}

	var err error
	defer func() {
		if r := recover(); r != nil {
			t.Settle(action, errors.New("panic"), "")
			panic(r)
		}
		t.Settle(action, err, successMessage)
	}()

	err = fn(ctx)
	return err
}

// Banner はエラーを画面に表示するメッセージに変換する。
// 生の転送エラーは表示せず、正規化されたメッセージのみを使う。
func Banner(err error) (string, map[string]string) {
	var appErr *model.APIError
	if errors.As(err, &appErr) {
		return appErr.Message, appErr.Fields
	}
	if apiErr, ok := apiclient.AsError(err); ok {
		return apiErr.Message, nil
	}
	return apiclient.DefaultErrorMessage, nil
}
