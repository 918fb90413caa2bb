package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"roomdecor/common"
	"roomdecor/internal/decor"
	"roomdecor/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// 多部分表单中除图片外的其它字段预留空间
const formOverhead = 1 << 20

var allowedExtensions = []string{".png", ".jpg", ".jpeg"}

// Generator 处理一次表单提交
type Generator interface {
	Generate(ctx context.Context, req decor.Request) (*decor.Result, error)
}

// Server 表单页面服务
type Server struct {
	generator Generator
	templator *Templator
	maxUpload int64
	engine    *gin.Engine
}

// NewServer 创建页面服务，maxUpload 为上传图片字节上限
func NewServer(generator Generator, maxUpload int64) *Server {
	s := &Server{
		generator: generator,
		templator: &Templator{},
		maxUpload: maxUpload,
	}

	engine := gin.New()
	engine.Use(requestLogger(), gin.Recovery())
	engine.MaxMultipartMemory = maxUpload
	s.Register(engine.Group("/"))
	s.engine = engine
	return s
}

// Handler 返回 http.Handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Register 注册路由
func (s *Server) Register(router *gin.RouterGroup) {
	router.GET("/", s.handleIndex)
	router.POST("/generate", s.handleGenerate)
	router.GET("/healthz", s.handleHealth)
}

// Run 监听 addr 直到 ctx 结束，随后优雅关闭
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		common.Infof("Web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	common.Info("Shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown web server: %w", err)
	}
	return nil
}

func (s *Server) handleIndex(c *gin.Context) {
	s.render(c, http.StatusOK, PageParams{Prompt: defaultPrompt})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// handleGenerate 校验上传后调用远程接口，校验失败时不发起远程调用
func (s *Server) handleGenerate(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload+formOverhead)

	if err := c.Request.ParseMultipartForm(s.maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		common.WithError(err).Warn("Failed to parse generate form")
		s.render(c, http.StatusBadRequest, PageParams{
			Prompt:  defaultPrompt,
			Warning: fmt.Sprintf("Could not read the form. Uploads are limited to %s.", s.limitText()),
		})
		return
	}

	prompt := c.PostForm("prompt")
	upload, err := s.readUpload(c)
	if err != nil {
		common.WithError(err).Warn("Rejected uploaded image")
		s.render(c, http.StatusBadRequest, PageParams{Prompt: prompt, Warning: err.Error()})
		return
	}

	res, err := s.generator.Generate(c.Request.Context(), decor.Request{Prompt: prompt, Image: upload})
	if err != nil {
		s.render(c, http.StatusBadGateway, PageParams{Prompt: prompt, Error: err.Error()})
		return
	}

	view := decor.Present(res, prompt)
	common.WithFields(map[string]interface{}{
		"route":  res.Route,
		"kind":   view.Kind,
		"prompt": utils.TruncateForLog(prompt, 120),
	}).Info("Generate request completed")
	s.render(c, http.StatusOK, PageParams{Prompt: prompt, View: newViewParams(view)})
}

// readUpload 读取可选的图片字段，没有选择文件时返回 nil
func (s *Server) readUpload(c *gin.Context) (*decor.Upload, error) {
	header, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded image: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !lo.Contains(allowedExtensions, ext) {
		return nil, fmt.Errorf("unsupported file type %q: only PNG, JPG and JPEG images are accepted", header.Filename)
	}
	if header.Size > s.maxUpload {
		return nil, fmt.Errorf("%s is too large: uploads are limited to %s", header.Filename, s.limitText())
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded image: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded image: %w", err)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty", header.Filename)
	}

	common.WithFields(map[string]interface{}{
		"filename": header.Filename,
		"size":     len(data),
	}).Debug("Received uploaded image")

	return &decor.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (s *Server) render(c *gin.Context, status int, params PageParams) {
	params.MaxUploadMB = int(s.maxUpload >> 20)
	body, err := s.templator.Render(params)
	if err != nil {
		common.WithError(err).Error("Failed to render page")
		c.String(http.StatusInternalServerError, "failed to render page")
		return
	}
	c.Data(status, "text/html; charset=utf-8", body)
}

func (s *Server) limitText() string {
	if s.maxUpload >= 1<<20 {
		return fmt.Sprintf("%dMB", s.maxUpload>>20)
	}
	return fmt.Sprintf("%d bytes", s.maxUpload)
}

// requestLogger 用 logrus 记录每个请求
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		common.WithFields(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}).Info("HTTP request")
	}
}
