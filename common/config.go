package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

const (
	ServeModeWeb = "web"
	ServeModeMCP = "mcp"

	StagingUpload = "upload"
	StagingOSS    = "oss"
)

// Config 应用配置结构
type Config struct {
	// 服务模式: web（表单页面）或 mcp（stdio 工具）
	ServeMode     string
	ServerAddress string
	ServerPort    string

	// 两个远程 Space：文生图与图片+提示词装饰，二者暴露同名接口
	TextSpace  string
	ImageSpace string
	APIName    string
	// HFToken 为空时按公开 Space 访问
	HFToken  string
	HFHubURL string
	// Gradio 请求超时时间（秒），0 表示不设超时
	GradioTimeoutSeconds int

	// 上传图片大小上限（MB）
	MaxUploadMB int
	// 上传图片交给远程接口的方式: upload（临时文件经 Space 上传）或 oss
	ImageStaging string

	// OSS 配置
	OSSEndpoint          string
	OSSRegion            string
	OSSAccessKey         string
	OSSSecretKey         string
	OSSBucket            string
	OSSPathStyle         bool
	OSSURLExpiresSeconds int

	// 日志配置
	LogLevel  string // 日志级别: debug, info, warn, error
	LogFormat string // 日志格式: json, text
	LogOutput string // 输出位置: stdout, stderr, file
	LogFile   string // 日志文件路径（当 LogOutput 为 file 时）
}

// LoadConfig 从 .env 文件和环境变量加载配置，并初始化日志系统
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: .env file not found, using environment variables")
	}

	config := &Config{
		ServeMode:     strings.ToLower(getEnv("SERVE_MODE", ServeModeWeb)),
		ServerAddress: getEnv("SERVER_ADDRESS", "0.0.0.0"),
		ServerPort:    getEnv("SERVER_PORT", "8080"),

		TextSpace:            getEnv("TEXT_SPACE", "Samuelbegin/room-image-generation"),
		ImageSpace:           getEnv("IMAGE_SPACE", "https://samuelbegin-room-decor-ai.hf.space/"),
		APIName:              getEnv("API_NAME", "/predict"),
		HFToken:              getEnv("HF_TOKEN", ""),
		HFHubURL:             getEnv("HF_HUB_URL", "https://huggingface.co"),
		GradioTimeoutSeconds: getEnvInt("GRADIO_TIMEOUT_SECONDS", 0),

		MaxUploadMB:  getEnvInt("MAX_UPLOAD_MB", 10),
		ImageStaging: strings.ToLower(getEnv("IMAGE_STAGING", StagingUpload)),

		OSSEndpoint:          getEnv("OSS_ENDPOINT", ""),
		OSSRegion:            getEnv("OSS_REGION", "us-east-1"),
		OSSAccessKey:         getEnv("OSS_ACCESS_KEY", ""),
		OSSSecretKey:         getEnv("OSS_SECRET_KEY", ""),
		OSSBucket:            getEnv("OSS_BUCKET", ""),
		OSSPathStyle:         getEnvBool("OSS_PATH_STYLE", false),
		OSSURLExpiresSeconds: getEnvInt("OSS_URL_EXPIRES_SECONDS", 3600),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogOutput: getEnv("LOG_OUTPUT", "stdout"),
		LogFile:   getEnv("LOG_FILE", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// stdio 模式下 stdout 承载 MCP 协议，日志只能写到别处
	if config.ServeMode == ServeModeMCP && strings.EqualFold(config.LogOutput, "stdout") {
		config.LogOutput = "stderr"
	}

	logConfig := &LogConfig{
		Level:    config.LogLevel,
		Format:   config.LogFormat,
		Output:   config.LogOutput,
		FilePath: config.LogFile,
	}
	if err := InitLogger(logConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return config, nil
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	if !lo.Contains([]string{ServeModeWeb, ServeModeMCP}, c.ServeMode) {
		return fmt.Errorf("unsupported SERVE_MODE: %s", c.ServeMode)
	}
	if !lo.Contains([]string{StagingUpload, StagingOSS}, c.ImageStaging) {
		return fmt.Errorf("unsupported IMAGE_STAGING: %s", c.ImageStaging)
	}
	if c.ImageStaging == StagingOSS && c.OSSBucket == "" {
		return fmt.Errorf("OSS_BUCKET is required when IMAGE_STAGING=%s", StagingOSS)
	}
	if c.TextSpace == "" || c.ImageSpace == "" {
		return fmt.Errorf("TEXT_SPACE and IMAGE_SPACE must not be empty")
	}
	if c.APIName == "" {
		return fmt.Errorf("API_NAME must not be empty")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	if c.GradioTimeoutSeconds < 0 {
		return fmt.Errorf("GRADIO_TIMEOUT_SECONDS must not be negative, got %d", c.GradioTimeoutSeconds)
	}
	return nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes" || value == "on"
}

// getEnvInt 获取整型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	return defaultValue
}

// GetServerAddr 返回完整的服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.ServerAddress, c.ServerPort)
}

// GradioTimeout 返回 Gradio 请求超时时间
func (c *Config) GradioTimeout() time.Duration {
	return time.Duration(c.GradioTimeoutSeconds) * time.Second
}

// MaxUploadBytes 返回上传图片的字节上限
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
