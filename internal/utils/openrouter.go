package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ChatMessage 对话消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest OpenAI 兼容的 chat completions 请求
type ChatRequest struct {
	Model            string        `json:"model"`
	Messages         []ChatMessage `json:"messages"`
	Temperature      float64       `json:"temperature,omitempty"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
	TopP             float64       `json:"top_p,omitempty"`
	FrequencyPenalty float64       `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64       `json:"presence_penalty,omitempty"`
}

// ChatResponse chat completions 响应
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string      `json:"message"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

// LLMError 上游 LLM 返回的错误
type LLMError struct {
	StatusCode int
	Message    string
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("openrouter api error (%d): %s", e.StatusCode, e.Message)
}

// ErrEmptyCompletion 模型没有返回内容
var ErrEmptyCompletion = errors.New("openrouter returned no content")

// OpenRouterClient 调用 OpenRouter 的客户端
type OpenRouterClient struct {
	apiKey  string
	baseURL string
	referer string
	title   string
	http    *HTTPClient
}

// NewOpenRouterClient 创建客户端，referer/title 用于 OpenRouter 的应用归属统计
func NewOpenRouterClient(apiKey, baseURL, referer, title string) *OpenRouterClient {
	return &OpenRouterClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		referer: referer,
		title:   title,
		// LLM 生成内容较慢
		http: NewHTTPClient(60 * time.Second),
	}
}

// Configured 是否配置了 API Key
func (c *OpenRouterClient) Configured() bool {
	return c.apiKey != ""
}

// Chat 发送一次对话请求，返回第一条回复的文本
func (c *OpenRouterClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if c.apiKey == "" {
		return "", &LLMError{StatusCode: 401, Message: "OPENROUTER_API_KEY is not set: missing API key"}
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.apiKey,
		"HTTP-Referer":  c.referer,
		"X-Title":       c.title,
	}

	var result ChatResponse
	err := c.http.PostJSON(ctx, c.baseURL+"/chat/completions", headers, req, &result)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return "", &LLMError{StatusCode: se.StatusCode, Message: upstreamMessage(se)}
		}
		return "", fmt.Errorf("post request to openrouter failed: %w", err)
	}

	if result.Error != nil {
		return "", &LLMError{StatusCode: 500, Message: result.Error.Message}
	}

	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return result.Choices[0].Message.Content, nil
}

// upstreamMessage 从错误响应体中提取 error.message，并补充状态码对应的语义
func upstreamMessage(se *StatusError) string {
	var body ChatResponse
	msg := ""
	if err := json.Unmarshal([]byte(se.Body), &body); err == nil && body.Error != nil {
		msg = body.Error.Message
	}
	if msg == "" {
		msg = strings.TrimSpace(se.Body)
	}

	switch se.StatusCode {
	case 401:
		return "invalid API key: " + msg
	case 402:
		return "insufficient credits: " + msg
	case 429:
		return "rate limit exceeded: " + msg
	}
	return msg
}
