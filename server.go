package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"roomdecor/common"
	"roomdecor/internal/inject"
	"roomdecor/internal/web"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/do"
)

func main() {
	// 加载配置
	config, err := common.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 打印配置信息（隐藏敏感信息）
	fmt.Fprintf(os.Stderr, "Server starting...\n")
	fmt.Fprintf(os.Stderr, "Serve Mode: %s\n", config.ServeMode)
	fmt.Fprintf(os.Stderr, "Text Space: %s\n", config.TextSpace)
	fmt.Fprintf(os.Stderr, "Image Space: %s\n", config.ImageSpace)
	fmt.Fprintf(os.Stderr, "API Name: %s\n", config.APIName)
	fmt.Fprintf(os.Stderr, "HF Token: %s\n", maskAPIKey(config.HFToken))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	injector := inject.Setup(ctx, config)
	defer func() {
		if err := injector.Shutdown(); err != nil {
			common.WithError(err).Warn("Failed to shutdown services")
		}
	}()

	switch config.ServeMode {
	case common.ServeModeMCP:
		s := do.MustInvoke[*server.MCPServer](injector)
		// 启动 stdio 服务器
		if err := server.ServeStdio(s); err != nil {
			common.Fatalf("Server error: %v", err)
		}
	default:
		if config.LogLevel != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		s := do.MustInvoke[*web.Server](injector)
		if err := s.Run(ctx, config.GetServerAddr()); err != nil {
			common.Fatalf("Server error: %v", err)
		}
	}
}

// maskAPIKey 隐藏 API Key 的敏感部分
func maskAPIKey(key string) string {
	if key == "" {
		return "(none)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
