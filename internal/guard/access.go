// Package guard はロールに基づく画面保護と、未ログイン時のカウントダウン付きリダイレクトを提供する。
package guard

import (
	"strings"

	"github.com/hitoshi/storefront/internal/model"
)

// AccessTable はURLパスのプレフィックスとロールの対応表。
// 起動時に構築し、以降は変更しない。
type AccessTable struct {
	rules []model.RoleAccessRule
}

// NewAccessTable はルールからAccessTableを生成する。
// プレフィックスの末尾のスラッシュは取り除く。
func NewAccessTable(rules ...model.RoleAccessRule) *AccessTable {
	t := &AccessTable{rules: make([]model.RoleAccessRule, 0, len(rules))}
	for _, r := range rules {
		r.Prefix = cleanPath(r.Prefix)
		r.Roles = append([]model.Role(nil), r.Roles...)
		t.rules = append(t.rules, r)
	}
	return t
}

// DefaultAccessTable は管理画面、顧客画面、店舗オーナー画面、特権管理画面、チェックアウトの対応表を返す。
func DefaultAccessTable() *AccessTable {
	return NewAccessTable(
		model.RoleAccessRule{Prefix: "/admin", Roles: []model.Role{model.RoleAdmin, model.RoleSuperAdmin}},
		model.RoleAccessRule{Prefix: "/super-admin", Roles: []model.Role{model.RoleSuperAdmin}},
		model.RoleAccessRule{Prefix: "/customer", Roles: []model.Role{model.RoleCustomer}},
		model.RoleAccessRule{Prefix: "/restaurant-owner", Roles: []model.Role{model.RoleRestaurant}},
		model.RoleAccessRule{Prefix: "/checkout", AllowGuest: true},
	)
}

// Match はパスに一致するルールのうち、最も長いプレフィックスを持つものを返す。
// プレフィックスはパスのセグメント単位で比較するため、/admin は /administrator に一致しない。
func (t *AccessTable) Match(path string) (model.RoleAccessRule, bool) {
	path = cleanPath(path)

	var best model.RoleAccessRule
	found := false
	for _, r := range t.rules {
		if !segmentPrefix(path, r.Prefix) {
			continue
		}
		if !found || len(r.Prefix) > len(best.Prefix) {
			best = r
			found = true
		}
	}
	return best, found
}

// Rules はルールのコピーを返す。
func (t *AccessTable) Rules() []model.RoleAccessRule {
	out := make([]model.RoleAccessRule, len(t.rules))
	copy(out, t.rules)
	return out
}

func segmentPrefix(path, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
