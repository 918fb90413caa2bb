package gradio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"roomdecor/common"
	"roomdecor/internal/utils"
)

const (
	defaultHubURL = "https://huggingface.co"
	userAgent     = "roomdecor-gradio-client"

	// 单个 SSE 事件的最大长度，base64 图片结果可能很大
	maxEventBytes = 32 << 20
)

// ErrNoResult 事件流结束但没有收到 complete 事件
var ErrNoResult = errors.New("gradio: event stream ended without a result")

// StatusError Space 返回非 2xx 状态码
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gradio api error: status %d from %s, body: %s", e.StatusCode, e.URL, e.Body)
}

// RemoteError Space 在事件流中报告的错误
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "gradio space error: " + e.Message
}

// Config Gradio 客户端配置
type Config struct {
	// Src 为 Space 的完整 URL，或 Hugging Face Space id（owner/name）
	Src string
	// HFToken 可选，设置后以 Bearer 方式随每个请求发送
	HFToken string
	// HubURL 用于解析 Space id，默认 https://huggingface.co
	HubURL string
	// Timeout 单次 HTTP 请求超时时间，0 表示不设超时
	Timeout time.Duration
	// HTTPClient 可选，覆盖默认的 HTTP 客户端
	HTTPClient *http.Client
}

// Client 绑定到单个 Space 的 Gradio 客户端。
// 构造时解析 Space 地址并读取一次 /config，之后可在多次交互间复用。
type Client struct {
	httpClient *http.Client
	src        string
	root       string
	apiPrefix  string
	token      string
}

// NewClient 创建 Gradio 客户端并连接 Space
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Src) == "" {
		return nil, fmt.Errorf("gradio space src is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		httpClient: httpClient,
		src:        cfg.Src,
		token:      cfg.HFToken,
	}

	hubURL := cfg.HubURL
	if hubURL == "" {
		hubURL = defaultHubURL
	}

	root, err := c.resolveRoot(ctx, cfg.Src, hubURL)
	if err != nil {
		return nil, err
	}
	c.root = root

	if err := c.loadConfig(ctx); err != nil {
		return nil, err
	}

	common.WithFields(map[string]interface{}{
		"src":        c.src,
		"root":       c.root,
		"api_prefix": c.apiPrefix,
		"has_token":  c.token != "",
	}).Info("Connected to Gradio space")

	return c, nil
}

// Root 返回 Space 的根 URL
func (c *Client) Root() string {
	return c.root
}

// Close 释放空闲连接
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Shutdown 供依赖注入容器在退出时调用
func (c *Client) Shutdown() error {
	return c.Close()
}

// resolveRoot 将 Space id 解析为根 URL；完整 URL 直接使用
func (c *Client) resolveRoot(ctx context.Context, src, hubURL string) (string, error) {
	if utils.IsHTTPURL(src) {
		return strings.TrimRight(src, "/"), nil
	}

	parts := strings.Split(src, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("invalid gradio space id %q, expected owner/name or a URL", src)
	}

	endpoint := fmt.Sprintf("%s/api/spaces/%s/%s/host", strings.TrimRight(hubURL, "/"),
		url.PathEscape(parts[0]), url.PathEscape(parts[1]))
	body, err := c.doRequest(ctx, http.MethodGet, endpoint, nil, "")
	if err != nil {
		return "", fmt.Errorf("failed to resolve space %s: %w", src, err)
	}

	var resp struct {
		Host string `json:"host"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse space host response: %w", err)
	}
	if resp.Host == "" {
		return "", fmt.Errorf("space %s has no host, it may be sleeping or private", src)
	}
	return strings.TrimRight(resp.Host, "/"), nil
}

// loadConfig 读取 Space 的 /config，取得接口前缀
func (c *Client) loadConfig(ctx context.Context) error {
	body, err := c.doRequest(ctx, http.MethodGet, c.root+"/config", nil, "")
	if err != nil {
		return fmt.Errorf("failed to load config of space %s: %w", c.src, err)
	}

	var cfg struct {
		APIPrefix string `json:"api_prefix"`
		Version   string `json:"version"`
	}
	if err := json.Unmarshal(body, &cfg); err != nil {
		return fmt.Errorf("failed to parse config of space %s: %w", c.src, err)
	}
	c.apiPrefix = "/" + strings.Trim(cfg.APIPrefix, "/")
	if c.apiPrefix == "/" {
		c.apiPrefix = ""
	}

	common.WithFields(map[string]interface{}{
		"src":            c.src,
		"gradio_version": cfg.Version,
	}).Debug("Loaded Gradio space config")
	return nil
}

// Predict 提交一次调用并阻塞等待结果。
// 单个输出直接返回该值，多个输出返回 []any。
func (c *Client) Predict(ctx context.Context, apiName string, args ...any) (any, error) {
	name := strings.Trim(apiName, "/")
	if name == "" {
		return nil, fmt.Errorf("gradio api name is required")
	}

	data := make([]any, len(args))
	for i, arg := range args {
		prepared, err := c.prepareArg(ctx, arg)
		if err != nil {
			return nil, err
		}
		data[i] = prepared
	}

	callURL := c.apiURL("/call/" + name)
	common.WithFields(map[string]interface{}{
		"src":      c.src,
		"endpoint": callURL,
		"args":     len(data),
	}).Info("Submitting Gradio prediction")

	body, err := c.doRequest(ctx, http.MethodPost, callURL, map[string]any{"data": data}, "application/json")
	if err != nil {
		return nil, fmt.Errorf("failed to submit prediction: %w", err)
	}

	var submitted struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(body, &submitted); err != nil {
		return nil, fmt.Errorf("failed to parse prediction response: %w", err)
	}
	if submitted.EventID == "" {
		return nil, fmt.Errorf("prediction response missing event_id")
	}

	outputs, err := c.awaitResult(ctx, callURL+"/"+url.PathEscape(submitted.EventID))
	if err != nil {
		return nil, err
	}

	for i := range outputs {
		outputs[i] = c.flattenFiles(outputs[i])
	}

	common.WithFields(map[string]interface{}{
		"src":      c.src,
		"event_id": submitted.EventID,
		"outputs":  len(outputs),
	}).Info("Gradio prediction completed")

	if len(outputs) == 1 {
		return outputs[0], nil
	}
	return outputs, nil
}

// prepareArg 将 FileRef 转换为 Space 可识别的 FileData，其它参数原样发送
func (c *Client) prepareArg(ctx context.Context, arg any) (any, error) {
	ref, ok := arg.(FileRef)
	if !ok {
		if p, isPtr := arg.(*FileRef); isPtr && p != nil {
			ref, ok = *p, true
		}
	}
	if !ok {
		return arg, nil
	}

	if ref.IsURL() {
		return newFileData(ref.Location, ref.Location, ref.Name()), nil
	}

	serverPath, err := c.upload(ctx, ref.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", ref.Name(), err)
	}
	return newFileData(serverPath, "", ref.Name()), nil
}

// upload 以 multipart 形式把本地文件上传到 Space，返回服务端路径
func (c *Client) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	uploadURL := c.apiURL("/upload")
	common.WithFields(map[string]interface{}{
		"endpoint": uploadURL,
		"file":     filepath.Base(path),
		"size":     buf.Len(),
	}).Debug("Uploading file to Gradio space")

	body, err := c.doRequest(ctx, http.MethodPost, uploadURL, &buf, w.FormDataContentType())
	if err != nil {
		return "", err
	}

	var paths []string
	if err := json.Unmarshal(body, &paths); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("upload response contained no paths")
	}
	return paths[0], nil
}

// awaitResult 读取 SSE 事件流直到 complete 或 error
func (c *Client) awaitResult(ctx context.Context, streamURL string) ([]any, error) {
	req, err := c.newRequest(ctx, http.MethodGet, streamURL, nil, "")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, streamURL); err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventBytes)

	var event string
	var data []string
	for {
		more := scanner.Scan()
		line := scanner.Text()
		if more && line != "" {
			switch {
			case strings.HasPrefix(line, "event:"):
				event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			}
			continue
		}

		// 空行或流结束时分发当前事件
		if event != "" || len(data) > 0 {
			outputs, done, err := handleEvent(event, strings.Join(data, "\n"))
			if done || err != nil {
				return outputs, err
			}
		}
		event, data = "", nil

		if !more {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event stream: %w", err)
	}
	return nil, ErrNoResult
}

// handleEvent 处理单个 SSE 事件，done 为 true 表示已得到最终结果
func handleEvent(event, data string) ([]any, bool, error) {
	switch event {
	case "complete":
		var outputs []any
		if err := json.Unmarshal([]byte(data), &outputs); err != nil {
			return nil, true, fmt.Errorf("failed to parse prediction result: %w", err)
		}
		return outputs, true, nil
	case "error":
		return nil, true, &RemoteError{Message: errorMessage(data)}
	default:
		// generating / heartbeat 等中间事件
		return nil, false, nil
	}
}

// errorMessage 提取 error 事件中的错误描述
func errorMessage(data string) string {
	data = strings.TrimSpace(data)
	if data == "" || data == "null" {
		return "the space reported an error without details"
	}
	var msg string
	if err := json.Unmarshal([]byte(data), &msg); err == nil && msg != "" {
		return msg
	}
	return utils.TruncateForLog(data, 512)
}

// flattenFiles 将结果中的 FileData 替换为可访问的 URL 字符串
func (c *Client) flattenFiles(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if isFileData(t) {
			return c.fileURL(t)
		}
		for k, inner := range t {
			t[k] = c.flattenFiles(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = c.flattenFiles(inner)
		}
		return t
	default:
		return v
	}
}

func (c *Client) fileURL(m map[string]any) string {
	if u, ok := m["url"].(string); ok && u != "" {
		return u
	}
	path, _ := m["path"].(string)
	if utils.IsHTTPURL(path) {
		return path
	}
	return c.apiURL("/file=" + path)
}

func (c *Client) apiURL(path string) string {
	return c.root + c.apiPrefix + path
}

// doRequest 统一封装 HTTP 请求逻辑。
// body 为 io.Reader 时原样发送，其它非 nil 值编码为 JSON。
func (c *Client) doRequest(ctx context.Context, method, target string, body any, contentType string) ([]byte, error) {
	req, err := c.newRequest(ctx, method, target, body, contentType)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, target); err != nil {
		return nil, err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return respBody, nil
}

func (c *Client) newRequest(ctx context.Context, method, target string, body any, contentType string) (*http.Request, error) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func checkStatus(resp *http.Response, target string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	common.WithFields(map[string]interface{}{
		"status_code": resp.StatusCode,
		"url":         target,
		"body":        string(respBody),
	}).Error("Gradio space returned non-success status")
	return &StatusError{StatusCode: resp.StatusCode, URL: target, Body: string(respBody)}
}
