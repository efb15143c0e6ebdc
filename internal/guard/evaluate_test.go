package guard

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/storefront/internal/model"
)

func ruleFor(t *testing.T, path string) *model.RoleAccessRule {
	t.Helper()
	r, ok := DefaultAccessTable().Match(path)
	if !ok {
		t.Fatalf("no rule for %s", path)
	}
	return &r
}

func TestEvaluate(t *testing.T) {
	admin := ruleFor(t, "/admin")
	checkout := ruleFor(t, "/checkout")

	tests := []struct {
		name string
		in   Input
		want State
	}{
		{"初期化中は判定しない", Input{Loading: true, Authenticated: true, Role: model.RoleAdmin, Rule: admin}, StateLoading},
		{"保護されていないパス", Input{}, StateAuthorized},
		{"未ログイン", Input{Rule: admin}, StateUnauthenticated},
		{"管理者", Input{Authenticated: true, Role: model.RoleAdmin, Rule: admin}, StateAuthorized},
		{"特権管理者", Input{Authenticated: true, Role: model.RoleSuperAdmin, Rule: admin}, StateAuthorized},
		{"顧客は管理画面に入れない", Input{Authenticated: true, Role: model.RoleCustomer, Rule: admin}, StateUnauthorized},
		{"未知のロールは常に拒否", Input{Authenticated: true, Role: model.RoleUnknown, Rule: checkout}, StateUnauthorized},
		{"チェックアウトは任意のロール", Input{Authenticated: true, Role: model.RoleRestaurant, Rule: checkout}, StateAuthorized},
		{"ゲスト続行", Input{Guest: true, Rule: checkout}, StateAuthorized},
		{"ゲスト不可のパス", Input{Guest: true, Rule: admin}, StateUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.in).State; got != tt.want {
				t.Errorf("State = %v, want %v", got, tt.want)
			}
		})
	}
}

// 上位のロールであっても列挙されていなければ拒否する。
func TestEvaluate_NoRoleHierarchy(t *testing.T) {
	customer := ruleFor(t, "/customer")
	d := Evaluate(Input{Authenticated: true, Role: model.RoleSuperAdmin, Rule: customer})

	if d.State != StateUnauthorized {
		t.Fatalf("State = %v, want unauthorized", d.State)
	}
}

func TestEvaluate_UnauthorizedReportsRoles(t *testing.T) {
	d := Evaluate(Input{Authenticated: true, Role: model.RoleRestaurant, Rule: ruleFor(t, "/admin")})

	want := Decision{
		State:    StateUnauthorized,
		Required: []model.Role{model.RoleAdmin, model.RoleSuperAdmin},
		Actual:   model.RoleRestaurant,
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("Decision mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluate_GuestDecision(t *testing.T) {
	d := Evaluate(Input{Guest: true, Rule: ruleFor(t, "/checkout")})
	if !d.AsGuest {
		t.Error("AsGuest = false, want true")
	}
}
