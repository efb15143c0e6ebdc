package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/auth"
	"github.com/hitoshi/storefront/internal/backend"
	"github.com/hitoshi/storefront/internal/form"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/visitor"
)

// 送信操作の名前。ActionTrackerのキーになる。
const (
	actionLogin    = "login"
	actionRegister = "register"
	actionProfile  = "profile"
	actionCheckout = "checkout"
)

// AuthServiceInterface は認証ハンドラーが必要とするリモートAPIのインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, req backend.LoginRequest) (*backend.AuthResult, error)
	Register(ctx context.Context, req backend.RegisterRequest) (*backend.AuthResult, error)
	OAuthConfig(ctx context.Context) (*model.OAuthConfig, error)
	UpdateProfile(ctx context.Context, token string, patch model.UserPatch) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	LoginPath string
	// HomePath はソーシャルログイン完了後の遷移先。
	HomePath string
}

// AuthHandler はログイン・会員登録・プロフィール・ソーシャルログインのHTTPハンドラー。
type AuthHandler struct {
	service    AuthServiceInterface
	workspaces Workspaces
	validator  *form.Validator
	config     AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, workspaces Workspaces, validator *form.Validator, config AuthHandlerConfig) *AuthHandler {
	if config.LoginPath == "" {
		config.LoginPath = "/login"
	}
	if config.HomePath == "" {
		config.HomePath = "/"
	}
	return &AuthHandler{
		service:    service,
		workspaces: workspaces,
		validator:  validator,
		config:     config,
	}
}

// sessionResponse は認証状態のAPIレスポンス。
type sessionResponse struct {
	Loading       bool        `json:"loading"`
	Authenticated bool        `json:"authenticated"`
	User          *model.User `json:"user,omitempty"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
	Message       string      `json:"message,omitempty"`
	RedirectTo    string      `json:"redirect_to,omitempty"`
}

func newSessionResponse(ws *visitor.Workspace) sessionResponse {
	s := ws.Auth.Snapshot()
	resp := sessionResponse{
		Loading:       ws.Auth.Loading(),
		Authenticated: ws.Auth.IsAuthenticated(),
		ExpiresAt:     s.ExpiresAt,
	}
	if resp.Authenticated {
		resp.User = s.User
	}
	return resp
}

// Login はメールアドレスとパスワードでログインする。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return
	}

	var req form.LoginForm
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Normalize()
	if err := h.validator.Struct(req); err != nil {
		handleServiceError(w, err)
		return
	}

	err := ws.Actions.Run(r.Context(), actionLogin, "ログインしました。", func(ctx context.Context) error {
		res, err := h.service.Login(ctx, backend.LoginRequest{Email: req.Email, Password: req.Password})
		if err != nil {
			return credentialsError(err)
		}
		if res.Token == "" {
			return model.NewUpstreamError(apiclient.DefaultErrorMessage)
		}
		return ws.Auth.Login(ctx, res.Token, res.RefreshToken)
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := newSessionResponse(ws)
	resp.Message = ws.Actions.State(actionLogin).Message
	resp.RedirectTo = safeReturnPath(r.URL.Query().Get("redirect"))
	writeJSON(w, http.StatusOK, resp)
}

// Register は会員登録し、トークンが返された場合はそのままログインする。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return
	}

	var req form.RegisterForm
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Normalize()
	if err := h.validator.Struct(req); err != nil {
		handleServiceError(w, err)
		return
	}

	err := ws.Actions.Run(r.Context(), actionRegister, "会員登録が完了しました。", func(ctx context.Context) error {
		res, err := h.service.Register(ctx, backend.RegisterRequest{
			Name:           req.Name,
			Email:          req.Email,
			Password:       req.Password,
			Role:           model.ParseRole(req.Role),
			Phone:          req.Phone,
			RestaurantName: req.RestaurantName,
			Address:        req.Address,
		})
		if err != nil {
			return err
		}
		if res.Token == "" {
			return nil
		}
		return ws.Auth.Login(ctx, res.Token, res.RefreshToken)
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := newSessionResponse(ws)
	resp.Message = ws.Actions.State(actionRegister).Message
	if !resp.Authenticated {
		resp.RedirectTo = h.config.LoginPath
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Logout はトークンを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return
	}

	ws.Auth.Logout(r.Context())

	resp := newSessionResponse(ws)
	resp.RedirectTo = h.config.LoginPath
	writeJSON(w, http.StatusOK, resp)
}

// Me は現在の認証状態を返す。初期化中はloadingがtrueになる。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(ws))
}

// UpdateMe はプロフィールを更新し、成功した場合はメモリ上のユーザーにも反映する。
// PATCH /auth/me
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return
	}
	token := requireToken(w, ws)
	if token == "" {
		return
	}

	var req form.ProfileForm
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Struct(req); err != nil {
		handleServiceError(w, err)
		return
	}

	err := ws.Actions.Run(r.Context(), actionProfile, "プロフィールを更新しました。", func(ctx context.Context) error {
		if _, err := h.service.UpdateProfile(ctx, token, req.Patch()); err != nil {
			return err
		}
		ws.Auth.UpdateUser(req.Patch())
		return nil
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := newSessionResponse(ws)
	resp.Message = ws.Actions.State(actionProfile).Message
	writeJSON(w, http.StatusOK, resp)
}

// OAuthConfig はソーシャルログインの設定を返す。
// GET /auth/oauth/config
func (h *AuthHandler) OAuthConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.OAuthConfig(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// OAuthStart は有効なプロバイダーのログインURLへリダイレクトする。
// GET /auth/oauth/{provider}
func (h *AuthHandler) OAuthStart(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.OAuthConfig(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	p, ok := cfg.Provider(chi.URLParam(r, "provider"))
	if !ok || !p.Enabled || p.LoginURL == "" {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewNotFoundError("ログインプロバイダー"))
		return
	}
	http.Redirect(w, r, p.LoginURL, http.StatusTemporaryRedirect)
}

// Callback はソーシャルログインのコールバックを処理する。
// 成功した場合はホームへ、失敗した場合はエラーメッセージ付きでログイン画面へリダイレクトする。
// GET /auth/callback
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return
	}

	p := auth.ParseCallback(r.URL.Query())
	if err := ws.Auth.CompleteOAuth(r.Context(), p); err != nil {
		msg, _ := form.Banner(err)
		http.Redirect(w, r, h.config.LoginPath+"?error="+url.QueryEscape(msg), http.StatusSeeOther)
		return
	}

	dest := h.config.HomePath
	if p.IsNewUser {
		dest += "?welcome=1"
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

// credentialsError はログインAPIの400/401を認証情報エラーに変換する。
func credentialsError(err error) error {
	upstream, ok := apiclient.AsError(err)
	if !ok || (upstream.Status != http.StatusUnauthorized && upstream.Status != http.StatusBadRequest) {
		return err
	}
	msg := upstream.Message
	if msg == apiclient.DefaultErrorMessage {
		msg = ""
	}
	return model.NewInvalidCredentialsError(msg)
}

// safeReturnPath はログイン後の戻り先として使えるサイト内のパスだけを返す。
func safeReturnPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, `\`) {
		return ""
	}
	return p
}
