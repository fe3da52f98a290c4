package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const (
	defaultDiscordAuthURL     = "https://discord.com/api/oauth2/authorize"
	defaultDiscordTokenURL    = "https://discord.com/api/oauth2/token"
	defaultDiscordUserInfoURL = "https://discord.com/api/users/@me"

	// discordCDNBase はアバター画像URLの組み立てに使用するCDNベースURL。
	discordCDNBase = "https://cdn.discordapp.com"
)

// DiscordOAuthConfig はDiscord OAuthプロバイダーの設定。
type DiscordOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	HTTPClient *http.Client
}

// DiscordOAuthProvider はDiscord OAuth 2.0による認証を提供する。
type DiscordOAuthProvider struct {
	config DiscordOAuthConfig
}

// NewDiscordOAuthProvider はDiscordOAuthProviderを生成する。
func NewDiscordOAuthProvider(config DiscordOAuthConfig) *DiscordOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultDiscordAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultDiscordTokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultDiscordUserInfoURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = defaultHTTPClient()
	}
	return &DiscordOAuthProvider{config: config}
}

// GetLoginURL はDiscord OAuthの認証URLを生成する。
// スコープにはidentify, emailを含む。
func (p *DiscordOAuthProvider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"identify email"},
		"state":         {state},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// discordUserInfo はDiscordの/users/@meエンドポイントのレスポンス。
type discordUserInfo struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Email      string `json:"email"`
	Avatar     string `json:"avatar"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
func (p *DiscordOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	accessToken, err := exchangeAuthCode(ctx, p.config.HTTPClient, p.config.TokenURL, url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	})
	if err != nil {
		return nil, tokenExchangeError(err)
	}

	body, err := fetchJSON(ctx, p.config.HTTPClient, p.config.UserInfoURL, accessToken)
	if err != nil {
		return nil, profileFetchError(err)
	}

	var info discordUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, profileFetchError(fmt.Errorf("failed to parse user info response: %w", err))
	}

	if info.ID == "" {
		return nil, profileFetchError(fmt.Errorf("empty id in user info response"))
	}

	// emailスコープが拒否された場合の代替アドレス
	email := info.Email
	if email == "" {
		email = info.Username + "@discord.user"
	}

	// 表示名はglobal_name優先、なければusername
	name := info.GlobalName
	if name == "" {
		name = info.Username
	}

	// アバターハッシュからCDNのURLを組み立てる
	var avatarURL string
	if info.Avatar != "" {
		avatarURL = fmt.Sprintf("%s/avatars/%s/%s.png", discordCDNBase, info.ID, info.Avatar)
	}

	return &OAuthUserInfo{
		ProviderUserID: info.ID,
		Email:          email,
		Name:           name,
		AvatarURL:      avatarURL,
		Provider:       "discord",
	}, nil
}

// compile-time interface check
var _ OAuthProvider = (*DiscordOAuthProvider)(nil)
