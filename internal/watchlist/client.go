package watchlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/user/moodflix/internal/model"
	"github.com/user/moodflix/internal/utils"
)

// envelope 服务端统一响应结构
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// APIError 服务端返回的业务错误
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsStatus 判断错误是否为指定状态码
func IsStatus(err error, code int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == code
}

// Client MoodFlix 服务端 API 客户端
type Client struct {
	baseURL string
	token   string
	http    *utils.HTTPClient
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    utils.NewHTTPClient(15 * time.Second),
	}
}

// WithToken 返回携带登录 Token 的副本
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Authenticated 是否携带 Token
func (c *Client) Authenticated() bool {
	return c.token != ""
}

func (c *Client) do(ctx context.Context, method, path string, body, data interface{}) error {
	headers := map[string]string{}
	if c.token != "" {
		headers["Authorization"] = "Bearer " + c.token
	}

	var env envelope
	err := c.http.DoJSON(ctx, method, c.baseURL+path, headers, body, &env)
	if err != nil {
		var se *utils.StatusError
		if !errors.As(err, &se) {
			return err
		}
		apiErr := &APIError{StatusCode: se.StatusCode, Message: http.StatusText(se.StatusCode)}
		if json.Unmarshal([]byte(se.Body), &env) == nil {
			if env.Message != "" {
				apiErr.Message = env.Message
			}
			// 409 等响应也会带数据
			if data != nil && len(env.Data) > 0 && string(env.Data) != "null" {
				_ = json.Unmarshal(env.Data, data)
			}
		}
		return apiErr
	}

	if data == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	return json.Unmarshal(env.Data, data)
}

// Login 邮箱密码登录，返回 JWT
func (c *Client) Login(ctx context.Context, email, password string) (string, *model.PublicUser, error) {
	var out struct {
		Token string            `json:"token"`
		User  *model.PublicUser `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return "", nil, err
	}
	if out.Token == "" {
		return "", nil, errors.New("login response did not include a token")
	}
	return out.Token, out.User, nil
}

// Session 当前 Token 对应的用户，未登录或已过期返回 nil
func (c *Client) Session(ctx context.Context) (*model.PublicUser, error) {
	var out struct {
		User *model.PublicUser `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

type addRequest struct {
	TMDBID    int                    `json:"tmdbId"`
	MovieData map[string]interface{} `json:"movieData,omitempty"`
}

// addItem POST /api/watchlist；已存在时返回 409 APIError 和已有条目
func (c *Client) addItem(ctx context.Context, it Item, source string) (*model.WatchlistItem, error) {
	var out struct {
		Item *model.WatchlistItem `json:"item"`
	}
	err := c.do(ctx, http.MethodPost, "/api/watchlist", addRequest{
		TMDBID:    it.TMDBID,
		MovieData: it.movieData(source),
	}, &out)
	return out.Item, err
}

func (c *Client) getItem(ctx context.Context, tmdbID int) (*model.WatchlistItem, error) {
	var out struct {
		Item *model.WatchlistItem `json:"item"`
	}
	if err := c.do(ctx, http.MethodGet, itemPath(tmdbID), nil, &out); err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	return out.Item, nil
}

func itemPath(tmdbID int) string {
	return "/api/watchlist/" + strconv.Itoa(tmdbID)
}
