package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const (
	defaultFacebookAuthURL     = "https://www.facebook.com/dialog/oauth"
	defaultFacebookTokenURL    = "https://graph.facebook.com/oauth/access_token"
	defaultFacebookUserInfoURL = "https://graph.facebook.com/me?fields=id,name,email,picture"
)

// FacebookOAuthConfig はFacebook OAuthプロバイダーの設定。
type FacebookOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	HTTPClient *http.Client
}

// FacebookOAuthProvider はFacebook OAuth 2.0による認証を提供する。
type FacebookOAuthProvider struct {
	config FacebookOAuthConfig
}

// NewFacebookOAuthProvider はFacebookOAuthProviderを生成する。
func NewFacebookOAuthProvider(config FacebookOAuthConfig) *FacebookOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultFacebookAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultFacebookTokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultFacebookUserInfoURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = defaultHTTPClient()
	}
	return &FacebookOAuthProvider{config: config}
}

// GetLoginURL はFacebook OAuthの認証URLを生成する。
// スコープにはemail, public_profileを含む。
func (p *FacebookOAuthProvider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"email public_profile"},
		"state":         {state},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// facebookUserInfo はGraph APIの/meエンドポイントのレスポンス。
// アバターURLはpicture.data.urlにネストされている。
type facebookUserInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
func (p *FacebookOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
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

	var info facebookUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, profileFetchError(fmt.Errorf("failed to parse user info response: %w", err))
	}

	if info.ID == "" {
		return nil, profileFetchError(fmt.Errorf("empty id in user info response"))
	}

	// emailパーミッションが拒否された場合の代替アドレス
	email := info.Email
	if email == "" {
		email = info.ID + "@facebook.user"
	}

	return &OAuthUserInfo{
		ProviderUserID: info.ID,
		Email:          email,
		Name:           info.Name,
		AvatarURL:      info.Picture.Data.URL,
		Provider:       "facebook",
	}, nil
}

// compile-time interface check
var _ OAuthProvider = (*FacebookOAuthProvider)(nil)
