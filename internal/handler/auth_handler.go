// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/propsdb/internal/auth"
	"github.com/hitoshi/propsdb/internal/metrics"
	"github.com/hitoshi/propsdb/internal/middleware"
	"github.com/hitoshi/propsdb/internal/model"
)

const (
	oauthStateCookie = "oauth_state"

	// loginErrorParam はコールバック失敗時にフロントエンドへ伝えるクエリパラメータ。
	// どの段階で失敗したかは含めない。
	loginErrorParam = "login_error=1"
)

// sessionCookieName はセッションミドルウェアが読み取るCookie名と同一。
var sessionCookieName = middleware.SessionCookieName()

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Providers() []string
	GetLoginURL(provider, state string) (string, error)
	HandleCallback(ctx context.Context, provider, code string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
// どのプロバイダー経由でも同じフローを通る。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	metrics metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。collectorはnil可。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, collector metrics.MetricsCollector) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
		metrics: collector,
	}
}

// Login はOAuthフローを開始する。
// GET /auth/{provider}/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	state, err := auth.GenerateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		handleServiceError(w, err)
		return
	}

	url, err := h.service.GetLoginURL(provider, state)
	if err != nil {
		// 未設定プロバイダーへのログイン要求
		handleServiceError(w, err)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/{provider}/callback?code=xxx&state=yyy
// 失敗時はどの段階で失敗したかを問わず、フロントエンドに
// 一般的なログイン失敗の表示だけを返す。詳細はログとメトリクスに残す。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	// 1. stateの検証（CSRF・リプレイ対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		stateErr := model.NewInvalidStateError()
		slog.Warn("oauth state mismatch",
			slog.String("provider", provider),
			slog.String("code", stateErr.Code),
		)
		h.recordLoginFailure(provider, failureStage(stateErr))
		h.clearStateCookie(w)
		h.redirectLoginError(w, r)
		return
	}

	// stateクッキーは一度きり。検証後すぐ削除する。
	h.clearStateCookie(w)

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		slog.Warn("oauth callback without code", slog.String("provider", provider))
		h.recordLoginFailure(provider, "code")
		h.redirectLoginError(w, r)
		return
	}

	// 3. 認証処理
	start := time.Now()
	session, err := h.service.HandleCallback(r.Context(), provider, code)
	if h.metrics != nil {
		h.metrics.RecordOAuthExchangeLatency(provider, time.Since(start))
	}
	if err != nil {
		slog.Error("oauth callback failed",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		h.recordLoginFailure(provider, failureStage(err))
		h.redirectLoginError(w, r)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLoginSuccess(provider)
	}

	// 4. セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 5. フロントエンドにリダイレクト
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	// セッションCookieの取得
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		// セッションをDBから削除
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
// 未ログイン・期限切れセッションでも200で {"user": null} を返し、
// フロントエンドはこれだけでログイン状態を判定できる。
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		json.NewEncoder(w).Encode(map[string]interface{}{"user": nil})
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUnauthenticated {
			slog.Error("failed to get current user", slog.String("error", err.Error()))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"user": nil})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"user": map[string]interface{}{
			"id":         user.ID,
			"email":      user.Email,
			"name":       user.Name,
			"avatar_url": user.AvatarURL,
		},
	})
}

// Providers は有効化されているプロバイダー名の一覧を返す。
// GET /auth/providers
// フロントエンドはこれを使ってログインボタンを出し分ける。
func (h *AuthHandler) Providers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"providers": h.service.Providers(),
	})
}

// redirectLoginError はログイン失敗をフロントエンドに伝えるリダイレクトを返す。
func (h *AuthHandler) redirectLoginError(w http.ResponseWriter, r *http.Request) {
	sep := "?"
	if strings.Contains(h.config.BaseURL, "?") {
		sep = "&"
	}
	http.Redirect(w, r, h.config.BaseURL+sep+loginErrorParam, http.StatusTemporaryRedirect)
}

// clearStateCookie はOAuth state Cookieを削除する。
func (h *AuthHandler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// recordLoginFailure はログイン失敗メトリクスを記録する。
func (h *AuthHandler) recordLoginFailure(provider, stage string) {
	if h.metrics != nil {
		h.metrics.RecordLoginFailure(provider, stage)
	}
}

// failureStage はコールバック処理のエラーから失敗段階のラベルを求める。
// ラベルはメトリクスとログにのみ使い、レスポンスには含めない。
func failureStage(err error) string {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return "internal"
	}
	switch apiErr.Code {
	case model.ErrCodeInvalidState:
		return "state"
	case model.ErrCodeUnknownProvider:
		return "provider"
	case model.ErrCodeTokenExchangeFailed:
		return "exchange"
	case model.ErrCodeProfileFetchFailed:
		return "profile"
	default:
		return "internal"
	}
}
