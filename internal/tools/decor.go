package tools

import (
	"context"
	"fmt"
	"net/url"
	"path"

	"roomdecor/common"
	"roomdecor/internal/decor"
	"roomdecor/internal/utils"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Generator 执行一次生成或装饰
type Generator interface {
	Generate(ctx context.Context, req decor.Request) (*decor.Result, error)
}

// decorTools MCP 工具处理函数
type decorTools struct {
	generator Generator
}

// RegisterDecorTools 注册房间图片相关的 MCP tools。
//
// 约定工具列表：
//   - room_generate_image  仅提示词，调用文生图 Space
//   - room_decorate_image  图片 URL + 提示词，调用装饰 Space
func RegisterDecorTools(s *server.MCPServer, generator Generator) error {
	t := &decorTools{generator: generator}

	generateTool := mcp.NewTool(
		"room_generate_image",
		mcp.WithDescription("Generate a room interior image from a text prompt. Returns the image path or URL produced by the remote Space."),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Text prompt describing the room to generate."),
		),
	)
	s.AddTool(generateTool, t.handleGenerate)

	decorateTool := mcp.NewTool(
		"room_decorate_image",
		mcp.WithDescription("Decorate an existing room photo according to a text prompt. Takes an HTTP/HTTPS image URL and returns the decorated image path or URL."),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Decoration instruction, e.g. 'add warm lighting and plants'."),
		),
		mcp.WithString("image_url",
			mcp.Required(),
			mcp.Description("HTTP/HTTPS URL of the room photo to decorate (PNG or JPEG)."),
		),
	)
	s.AddTool(decorateTool, t.handleDecorate)

	return nil
}

func (t *decorTools) handleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		common.WithError(err).Error("Room: failed to get prompt parameter for generate_image")
		return mcp.NewToolResultError(fmt.Sprintf("prompt parameter is required: %v", err)), nil
	}

	common.WithField("prompt", utils.TruncateForLog(prompt, 120)).Info("Room: generating image")

	res, err := t.generator.Generate(ctx, decor.Request{Prompt: prompt})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to generate image: %v", err)), nil
	}
	return resultText("Generated image", res), nil
}

func (t *decorTools) handleDecorate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		common.WithError(err).Error("Room: failed to get prompt parameter for decorate_image")
		return mcp.NewToolResultError(fmt.Sprintf("prompt parameter is required: %v", err)), nil
	}

	imageURL, err := req.RequireString("image_url")
	if err != nil {
		common.WithError(err).Error("Room: failed to get image_url parameter for decorate_image")
		return mcp.NewToolResultError(fmt.Sprintf("image_url parameter is required: %v", err)), nil
	}

	if !utils.IsHTTPURL(imageURL) {
		common.WithField("image_url", utils.TruncateForLog(imageURL, 120)).Error("Room: image_url must be an HTTP/HTTPS URL")
		return mcp.NewToolResultError("image_url must be an HTTP/HTTPS URL"), nil
	}

	data, mimeType, err := utils.DownloadImageFromURL(ctx, imageURL)
	if err != nil {
		common.WithError(err).WithField("image_url", imageURL).Error("Room: failed to download source image")
		return mcp.NewToolResultError(fmt.Sprintf("failed to download image: %v", err)), nil
	}

	if len(data) == 0 {
		common.WithField("image_url", imageURL).Error("Room: downloaded image is empty")
		return mcp.NewToolResultError("image_url returned an empty image"), nil
	}

	common.WithFields(map[string]interface{}{
		"prompt":    utils.TruncateForLog(prompt, 120),
		"image_url": imageURL,
		"size":      len(data),
	}).Info("Room: decorating image")

	upload := &decor.Upload{
		Filename:    uploadName(imageURL, mimeType),
		ContentType: mimeType,
		Data:        data,
	}
	res, err := t.generator.Generate(ctx, decor.Request{Prompt: prompt, Image: upload})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to decorate image: %v", err)), nil
	}
	return resultText("Decorated image", res), nil
}

// resultText 识别出图片引用时直接返回，否则附上原始返回值
func resultText(label string, res *decor.Result) *mcp.CallToolResult {
	if res.Recognized {
		return mcp.NewToolResultText(fmt.Sprintf("%s: %s", label, res.ImageRef))
	}
	view := decor.Present(res, "")
	return mcp.NewToolResultText("The Space didn't return a recognisable image path/URL:\n" + view.Raw)
}

// uploadName 从 URL 取文件名，没有扩展名时按 MIME 类型补齐
func uploadName(imageURL, mimeType string) string {
	name := "image"
	if u, err := url.Parse(imageURL); err == nil {
		if base := path.Base(u.Path); base != "/" && base != "." {
			name = base
		}
	}
	if path.Ext(name) == "" {
		name += utils.GetExtensionFromMimeType(mimeType)
	}
	return name
}
