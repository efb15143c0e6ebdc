package model

import "time"

// User はトークンから復元されたログインユーザーを表す。
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Name  string `json:"name,omitempty"`
}

// UserPatch はプロフィール更新で部分的に上書きするフィールドを表す。
// nilのフィールドは変更しない。
type UserPatch struct {
	Email *string `json:"email,omitempty"`
	Name  *string `json:"name,omitempty"`
	Role  *Role   `json:"role,omitempty"`
}

// Apply はパッチをユーザーのコピーに適用して返す。
func (p UserPatch) Apply(u User) User {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	return u
}

// AuthSession はベアラートークンとそこから導出したユーザーの組を表す。
// Token と User の両方が揃い、期限切れでない場合のみ認証済みとみなす。
type AuthSession struct {
	Token        string     `json:"-"`
	RefreshToken string     `json:"-"`
	User         *User      `json:"user,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Expired は now 時点でセッションが期限切れかどうかを返す。
// exp クレームを持たないトークンは期限切れにならない。
func (s AuthSession) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// Authenticated は now 時点で認証済みかどうかを返す。
func (s AuthSession) Authenticated(now time.Time) bool {
	return s.Token != "" && s.User != nil && !s.Expired(now)
}
