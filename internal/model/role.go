package model

// Role はユーザーのロールを表す列挙型。
type Role string

const (
	// RoleUnknown は認識できないロール。どのアクセスルールでも許可されない。
	RoleUnknown Role = ""
	// RoleCustomer は一般の注文者。
	RoleCustomer Role = "customer"
	// RoleRestaurant はレストランオーナー。
	RoleRestaurant Role = "restaurant"
	// RoleAdmin は管理者。
	RoleAdmin Role = "admin"
	// RoleSuperAdmin は特権管理者。
	RoleSuperAdmin Role = "superAdmin"
)

// Roles は既知のロールを列挙順で返す。
func Roles() []Role {
	return []Role{RoleCustomer, RoleRestaurant, RoleAdmin, RoleSuperAdmin}
}

// ParseRole は文字列をRoleに変換する。未知の文字列はRoleUnknownになる。
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleCustomer, RoleRestaurant, RoleAdmin, RoleSuperAdmin:
		return Role(s)
	default:
		return RoleUnknown
	}
}

// Valid は既知のロールかどうかを返す。
func (r Role) Valid() bool {
	return ParseRole(string(r)) != RoleUnknown
}

// String はロール名を返す。未知のロールは "unknown" になる。
func (r Role) String() string {
	if r == RoleUnknown {
		return "unknown"
	}
	return string(r)
}

// UnmarshalText は未知のロール文字列をRoleUnknownとして受け入れる。
func (r *Role) UnmarshalText(text []byte) error {
	*r = ParseRole(string(text))
	return nil
}

// RoleAccessRule はURLパスのプレフィックスと閲覧可能なロールの対応を表す。
// Rolesが空の場合は認証済みであればロールを問わない。
type RoleAccessRule struct {
	Prefix     string `json:"prefix"`
	Roles      []Role `json:"roles"`
	AllowGuest bool   `json:"allow_guest"`
}

// Allows はロールがルールで許可されているかを返す。
// 階層は考慮せず、列挙されたロールとの完全一致のみを許可する。
func (r RoleAccessRule) Allows(role Role) bool {
	if !role.Valid() {
		return false
	}
	if len(r.Roles) == 0 {
		return true
	}
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}
