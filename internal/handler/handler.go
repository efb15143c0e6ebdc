// Package handler はHTTPハンドラーを提供する。
// 各ハンドラーはリクエストの訪問者IDからWorkspaceを取り出し、状態コンテナとリモートAPIを操作する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/guard"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/visitor"
)

// maxBodyBytes はリクエストボディの上限。
const maxBodyBytes = 1 << 20

// Workspaces は訪問者IDからWorkspaceを取り出す。
type Workspaces interface {
	Get(ctx context.Context, id string) *visitor.Workspace
}

// SubjectFromWorkspaces はリクエスト元の訪問者の認証状態を返すguard.SubjectFuncを生成する。
// 訪問者IDがないリクエストは未ログインとして扱う。
func SubjectFromWorkspaces(workspaces Workspaces) guard.SubjectFunc {
	return func(r *http.Request) guard.Subject {
		id, err := middleware.VisitorIDFromContext(r.Context())
		if err != nil {
			return guard.Subject{}
		}
		return workspaces.Get(r.Context(), id).Subject()
	}
}

// workspaceFor はリクエストのWorkspaceを返す。訪問者IDがない場合はエラーレスポンスを書き込みfalseを返す。
func workspaceFor(workspaces Workspaces, w http.ResponseWriter, r *http.Request) (*visitor.Workspace, bool) {
	id, err := middleware.VisitorIDFromContext(r.Context())
	if err != nil {
		slog.Error("visitor id missing from context", slog.String("path", r.URL.Path))
		middleware.WriteInternalServerError(w)
		return nil, false
	}
	return workspaces.Get(r.Context(), id), true
}

// writeJSON はvをJSONで書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをvに読み込む。
// 読み込めない場合は400を書き込みfalseを返す。空のボディはゼロ値として扱う。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     model.ErrCodeValidation,
		Message:  "リクエストボディの形式が正しくありません。",
		Category: "validation",
		Action:   "入力内容を確認して再度送信してください。",
	})
	return false
}

// writeAPIErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層やリモートAPIから返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var appErr *model.APIError
	if errors.As(err, &appErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(appErr), appErr)
		return
	}

	if upstream, ok := apiclient.AsError(err); ok {
		status, appErr := mapUpstreamError(upstream)
		if status >= http.StatusInternalServerError {
			slog.Warn("remote api error",
				slog.Int("upstream_status", upstream.Status),
				slog.String("error", err.Error()),
			)
		}
		writeAPIErrorResponse(w, status, appErr)
		return
	}

	// それ以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation:
		return http.StatusBadRequest
	case model.ErrCodeUnknownCoupon, model.ErrCodeEmptyCart, model.ErrCodeMixedRestaurants:
		return http.StatusUnprocessableEntity
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials,
		model.ErrCodeSessionExpired, model.ErrCodeOAuthDenied:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden, model.ErrCodeCSRF:
		return http.StatusForbidden
	case model.ErrCodeItemNotInCart, model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeActionInProgress:
		return http.StatusConflict
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeUpstream, model.ErrCodeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// mapUpstreamError はリモートAPIのエラーを画面向けのエラーに変換する。
// 4xxはステータスとサーバーのメッセージをそのまま返し、5xxと通信エラーは502にまとめる。
func mapUpstreamError(e *apiclient.Error) (int, *model.APIError) {
	switch {
	case e.Status == 0:
		return http.StatusBadGateway, model.NewNetworkError()
	case e.Status == http.StatusUnauthorized:
		return http.StatusUnauthorized, model.NewSessionExpiredError()
	case e.Status == http.StatusForbidden:
		appErr := model.NewUpstreamError(e.Message)
		appErr.Code = model.ErrCodeForbidden
		appErr.Category = "authorization"
		appErr.Action = "権限のあるアカウントでログインし直してください。"
		return http.StatusForbidden, appErr
	case e.Status == http.StatusNotFound:
		appErr := model.NewUpstreamError(e.Message)
		appErr.Code = model.ErrCodeNotFound
		appErr.Category = "not_found"
		appErr.Action = "一覧に戻って選択し直してください。"
		return http.StatusNotFound, appErr
	case e.Status >= 400 && e.Status < 500:
		appErr := model.NewUpstreamError(e.Message)
		appErr.Category = "validation"
		appErr.Action = "入力内容を確認して再度お試しください。"
		return e.Status, appErr
	default:
		return http.StatusBadGateway, model.NewUpstreamError(e.Message)
	}
}

// requireToken はログイン済みであればトークンを返す。
// 未ログインの場合は401を書き込み空文字列を返す。
func requireToken(w http.ResponseWriter, ws *visitor.Workspace) string {
	if !ws.Auth.IsAuthenticated() {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return ""
	}
	return ws.Auth.Token()
}
