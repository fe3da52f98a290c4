// Package auth はOAuth認証フローとセッション管理を提供する。
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/propsdb/internal/model"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
// 各プロバイダー固有のレスポンス形式はアダプターがこの共通形式に正規化する。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	AvatarURL      string
	Provider       string // "google", "discord", "facebook"
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// プロバイダーの追加はこのインターフェースの実装を増やすことで行い、
// フローエンジン内でプロバイダー名の文字列分岐をしてはならない。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	// トークン交換の失敗はTOKEN_EXCHANGE_FAILED、
	// プロフィール取得・正規化の失敗はPROFILE_FETCH_FAILEDのAPIErrorでラップして返す。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// defaultHTTPTimeout はプロバイダーへの外部呼び出しのデフォルト上限時間。
// ブラウザがリダイレクトチェーンで同期的に待っているため、無期限の待機は許容しない。
const defaultHTTPTimeout = 10 * time.Second

// defaultHTTPClient はタイムアウト付きのHTTPクライアントを返す。
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// exchangeAuthCode は認可コードをアクセストークンに交換する。
// 各プロバイダーのトークンエンドポイントは共通のform POST形式を受け付ける。
// ネットワーク失敗・非2xx・不正なレスポンスボディはすべてエラーとして返す。
func exchangeAuthCode(ctx context.Context, client *http.Client, tokenURL string, data url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	token, err := parseAccessToken(body)
	if err != nil {
		return "", err
	}

	return token, nil
}

// tokenResponse はトークンエンドポイントの共通レスポンス。
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// parseAccessToken はトークンレスポンスのボディからアクセストークンを取り出す。
func parseAccessToken(body []byte) (string, error) {
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response")
	}
	return tr.AccessToken, nil
}

// fetchJSON はアクセストークン付きでエンドポイントからJSONレスポンスを取得する。
func fetchJSON(ctx context.Context, client *http.Client, endpoint, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// tokenExchangeError は失敗をTOKEN_EXCHANGE_FAILEDに正規化する。
func tokenExchangeError(err error) error {
	return fmt.Errorf("%w: %v", model.NewTokenExchangeFailedError(), err)
}

// profileFetchError は失敗をPROFILE_FETCH_FAILEDに正規化する。
func profileFetchError(err error) error {
	return fmt.Errorf("%w: %v", model.NewProfileFetchFailedError(), err)
}
