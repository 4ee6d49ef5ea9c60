package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client 语言模型客户端接口。
// 注入到 Extractor，测试中用假实现替换。
type Client interface {
	// Generate 发送一次对话请求，返回模型的自由文本输出
	Generate(ctx context.Context, req Request) (Response, error)
}

// Request 一次模型调用
type Request struct {
	SystemPrompt string
	UserPrompt   string
	ImageURL     string // 非空时走视觉模型
	MaxTokens    int
}

// Response 模型响应
type Response struct {
	Content string
	Model   string
}

// OpenAIClient OpenAI兼容的chat completions客户端
type OpenAIClient struct {
	apiKey      string
	endpoint    string
	textModel   string
	visionModel string
	httpClient  *http.Client
}

// NewOpenAIClient 创建OpenAI客户端
func NewOpenAIClient(apiKey, textModel, visionModel string) *OpenAIClient {
	if textModel == "" {
		textModel = "gpt-4o-mini"
	}
	if visionModel == "" {
		visionModel = "gpt-4o"
	}
	return &OpenAIClient{
		apiKey:      apiKey,
		endpoint:    "https://api.openai.com/v1/chat/completions",
		textModel:   textModel,
		visionModel: visionModel,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Available 检查客户端是否已配置
func (c *OpenAIClient) Available() bool {
	return c.apiKey != ""
}

// Generate 发送chat completions请求
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (Response, error) {
	if !c.Available() {
		return Response{}, fmt.Errorf("openai client not configured")
	}

	model := c.textModel
	var userContent interface{} = req.UserPrompt

	// 带图片时切换视觉模型，消息体用 content parts 格式
	if req.ImageURL != "" {
		model = c.visionModel
		userContent = []map[string]interface{}{
			{"type": "text", "text": req.UserPrompt},
			{"type": "image_url", "image_url": map[string]string{"url": req.ImageURL}},
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	messages := []map[string]interface{}{}
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]interface{}{
			"role":    "system",
			"content": req.SystemPrompt,
		})
	}
	messages = append(messages, map[string]interface{}{
		"role":    "user",
		"content": userContent,
	})

	body := map[string]interface{}{
		"model":      model,
		"max_tokens": maxTokens,
		"messages":   messages,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Response{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Response{}, fmt.Errorf("no choices in response")
	}

	return Response{
		Content: parsed.Choices[0].Message.Content,
		Model:   parsed.Model,
	}, nil
}
