package decor

import (
	"context"
	"fmt"

	"roomdecor/common"
	"roomdecor/internal/gradio"
	"roomdecor/internal/utils"
)

// Clients 提供文生图与图片装饰两个远程调用句柄。
// 实现方负责在首次使用时创建句柄并在之后复用。
type Clients interface {
	TextClient() (gradio.ClientIface, error)
	ImageClient() (gradio.ClientIface, error)
}

// Service 根据是否上传图片选择远程接口并解析返回值
type Service struct {
	clients Clients
	stager  Stager
	apiName string
}

// NewService 创建服务，两个 Space 使用同一个接口名 apiName
func NewService(clients Clients, stager Stager, apiName string) *Service {
	return &Service{
		clients: clients,
		stager:  stager,
		apiName: apiName,
	}
}

// Generate 执行一次交互：没有图片时调用文生图接口，否则把图片和提示词交给装饰接口。
// 远程调用失败时直接返回错误，不做重试。
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	var (
		raw   any
		route Route
		err   error
	)

	if req.Image == nil {
		route = RouteText
		raw, err = s.generate(ctx, req.Prompt)
	} else {
		route = RouteImage
		raw, err = s.decorate(ctx, req.Prompt, req.Image)
	}
	if err != nil {
		common.WithError(err).WithFields(map[string]interface{}{
			"route":  route,
			"prompt": utils.TruncateForLog(req.Prompt, 120),
		}).Error("Remote request failed")
		return nil, fmt.Errorf("%s request failed: %w", route, err)
	}

	ref, ok := FirstImageRef(raw)
	result := &Result{
		Route:      route,
		Raw:        raw,
		ImageRef:   ref,
		Recognized: ok,
	}

	entry := common.WithFields(map[string]interface{}{
		"route":      route,
		"recognized": ok,
		"image_ref":  utils.TruncateForLog(ref, 120),
	})
	if ok {
		entry.Info("Remote request completed")
	} else {
		entry.Warn("Remote request returned an unrecognised result")
	}
	return result, nil
}

// generate 文生图
func (s *Service) generate(ctx context.Context, prompt string) (any, error) {
	client, err := s.clients.TextClient()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to text space: %w", err)
	}
	return client.Predict(ctx, s.apiName, prompt)
}

// decorate 图片 + 提示词，先把上传的字节交给 Stager 换成文件引用
func (s *Service) decorate(ctx context.Context, prompt string, upload *Upload) (any, error) {
	client, err := s.clients.ImageClient()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to image space: %w", err)
	}

	ref, cleanup, err := s.stager.Stage(ctx, upload)
	if err != nil {
		return nil, fmt.Errorf("failed to stage uploaded image: %w", err)
	}
	defer cleanup()

	return client.Predict(ctx, s.apiName, ref, prompt)
}
