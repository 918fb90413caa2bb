package inject

import (
	"context"
	"fmt"

	"roomdecor/common"
	"roomdecor/internal/decor"
	"roomdecor/internal/gradio"
	"roomdecor/internal/oss"
	"roomdecor/internal/tools"
	"roomdecor/internal/web"

	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/do"
)

const (
	textClient  = "text_client"
	imageClient = "image_client"

	serverName    = "Room Interior AI"
	serverVersion = "1.0.0"
)

// Setup 注册所有组件。远程句柄在第一次交互时才创建，之后复用；
// 创建失败不会被缓存，下一次交互会重新创建。
func Setup(ctx context.Context, cfg *common.Config) *do.Injector {
	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			common.Debugf(format, args...)
		},
	})
	do.ProvideValue[*common.Config](injector, cfg)

	do.ProvideNamed[*gradio.Client](injector, textClient, func(i *do.Injector) (*gradio.Client, error) {
		cfg := do.MustInvoke[*common.Config](i)
		return newGradioClient(ctx, cfg, cfg.TextSpace)
	})
	do.ProvideNamed[*gradio.Client](injector, imageClient, func(i *do.Injector) (*gradio.Client, error) {
		cfg := do.MustInvoke[*common.Config](i)
		return newGradioClient(ctx, cfg, cfg.ImageSpace)
	})

	do.Provide[oss.OSSIface](injector, func(i *do.Injector) (oss.OSSIface, error) {
		return oss.NewOSSClientFromConfig(do.MustInvoke[*common.Config](i))
	})
	do.Provide[decor.Stager](injector, newStager)
	do.Provide[decor.Clients](injector, func(i *do.Injector) (decor.Clients, error) {
		return &lazyClients{injector: i}, nil
	})
	do.Provide[*decor.Service](injector, func(i *do.Injector) (*decor.Service, error) {
		return decor.NewService(
			do.MustInvoke[decor.Clients](i),
			do.MustInvoke[decor.Stager](i),
			do.MustInvoke[*common.Config](i).APIName,
		), nil
	})

	do.Provide[*web.Server](injector, func(i *do.Injector) (*web.Server, error) {
		return web.NewServer(do.MustInvoke[*decor.Service](i), do.MustInvoke[*common.Config](i).MaxUploadBytes()), nil
	})
	do.Provide[*server.MCPServer](injector, func(i *do.Injector) (*server.MCPServer, error) {
		s := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(true))
		if err := tools.RegisterDecorTools(s, do.MustInvoke[*decor.Service](i)); err != nil {
			return nil, fmt.Errorf("failed to register decor tools: %w", err)
		}
		return s, nil
	})

	return injector
}

func newGradioClient(ctx context.Context, cfg *common.Config, src string) (*gradio.Client, error) {
	common.WithField("space", src).Info("Connecting to Gradio space")
	client, err := gradio.NewClient(ctx, gradio.Config{
		Src:     src,
		HFToken: cfg.HFToken,
		HubURL:  cfg.HFHubURL,
		Timeout: cfg.GradioTimeout(),
	})
	if err != nil {
		common.WithError(err).WithField("space", src).Warn("Failed to connect to Gradio space")
		return nil, err
	}
	return client, nil
}

func newStager(i *do.Injector) (decor.Stager, error) {
	cfg := do.MustInvoke[*common.Config](i)
	if cfg.ImageStaging != common.StagingOSS {
		return &decor.TempFileStager{}, nil
	}

	client, err := do.Invoke[oss.OSSIface](i)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}
	return &decor.OSSStager{
		Client:    client,
		Bucket:    cfg.OSSBucket,
		ExpiresIn: int64(cfg.OSSURLExpiresSeconds),
	}, nil
}

// lazyClients 通过容器按需取得远程句柄
type lazyClients struct {
	injector *do.Injector
}

func (l *lazyClients) TextClient() (gradio.ClientIface, error) {
	return l.invoke(textClient)
}

func (l *lazyClients) ImageClient() (gradio.ClientIface, error) {
	return l.invoke(imageClient)
}

func (l *lazyClients) invoke(name string) (gradio.ClientIface, error) {
	client, err := do.InvokeNamed[*gradio.Client](l.injector, name)
	if err != nil {
		return nil, err
	}
	return client, nil
}
