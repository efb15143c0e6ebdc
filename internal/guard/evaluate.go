package guard

import (
	"encoding/json"

	"github.com/hitoshi/storefront/internal/model"
)

// State は画面保護の判定結果。
type State int

const (
	// StateLoading は認証状態の初期化が終わっておらず、判定を保留している状態。
	StateLoading State = iota
	// StateUnauthenticated は有効なセッションがない状態。
	StateUnauthenticated
	// StateAuthorized は表示してよい状態。
	StateAuthorized
	// StateUnauthorized はログイン済みだがロールが一致しない状態。
	StateUnauthorized
)

// String は状態名を返す。
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthorized:
		return "authorized"
	case StateUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// MarshalJSON は状態名の文字列としてエンコードする。
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Input は判定に必要な情報。
type Input struct {
	Loading       bool
	Authenticated bool
	Role          model.Role
	// Rule はパスに対応するルール。nilは保護されていないパスを表す。
	Rule *model.RoleAccessRule
	// Guest はゲストとして続行することを選択済みかどうか。
	Guest bool
}

// Decision は判定結果。
type Decision struct {
	State    State        `json:"state"`
	Required []model.Role `json:"required_roles,omitempty"`
	Actual   model.Role   `json:"actual_role,omitempty"`
	// AsGuest はゲストとして表示することを表す。
	AsGuest    bool `json:"as_guest,omitempty"`
	AllowGuest bool `json:"allow_guest,omitempty"`
}

// Evaluate は入力から判定結果を求める。
// ロールの比較は完全一致のみで、列挙されていないロールは上位のロールであっても拒否する。
func Evaluate(in Input) Decision {
	if in.Loading {
		return Decision{State: StateLoading}
	}
	if in.Rule == nil {
		return Decision{State: StateAuthorized}
	}

	rule := *in.Rule
	if !in.Authenticated {
		if in.Guest && rule.AllowGuest {
			return Decision{State: StateAuthorized, AsGuest: true, AllowGuest: true}
		}
		return Decision{State: StateUnauthenticated, AllowGuest: rule.AllowGuest}
	}

	if !rule.Allows(in.Role) {
		return Decision{
			State:    StateUnauthorized,
			Required: append([]model.Role(nil), rule.Roles...),
			Actual:   in.Role,
		}
	}
	return Decision{State: StateAuthorized}
}
