package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/user/moodflix/internal/config"
	"github.com/user/moodflix/internal/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// ErrOAuthDisabled 未配置 Google 登录
var ErrOAuthDisabled = errors.New("google sign-in is not configured")

// GoogleProfile Google 用户信息
type GoogleProfile struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

type GoogleOAuthService struct {
	conf        *oauth2.Config
	userInfoURL string
	http        *utils.HTTPClient
}

func NewGoogleOAuthService(cfg config.GoogleConfig) *GoogleOAuthService {
	if !cfg.Enabled() {
		return &GoogleOAuthService{}
	}
	return &GoogleOAuthService{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoints.Google,
		},
		userInfoURL: googleUserInfoURL,
		http:        utils.NewHTTPClient(10 * time.Second),
	}
}

// Enabled 是否可用
func (s *GoogleOAuthService) Enabled() bool {
	return s.conf != nil
}

// NewState 生成防 CSRF 的 state
func NewState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// AuthURL 跳转到 Google 授权页的地址
func (s *GoogleOAuthService) AuthURL(state string) (string, error) {
	if !s.Enabled() {
		return "", ErrOAuthDisabled
	}
	return s.conf.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// Exchange 用授权码换取用户信息
func (s *GoogleOAuthService) Exchange(ctx context.Context, code string) (*GoogleProfile, error) {
	if !s.Enabled() {
		return nil, ErrOAuthDisabled
	}

	token, err := s.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	var profile GoogleProfile
	headers := map[string]string{"Authorization": "Bearer " + token.AccessToken}
	if err := s.http.GetJSON(ctx, s.userInfoURL, headers, &profile); err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	if profile.Sub == "" || profile.Email == "" {
		return nil, errors.New("google profile is missing id or email")
	}
	if !profile.EmailVerified {
		return nil, errors.New("google email is not verified")
	}
	return &profile, nil
}
