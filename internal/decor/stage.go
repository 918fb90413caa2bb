package decor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"roomdecor/common"
	"roomdecor/internal/gradio"
	"roomdecor/internal/oss"
	"roomdecor/internal/utils"
)

// Stager 把上传的图片字节转换为远程接口可用的文件引用。
// 返回的 cleanup 在远程调用结束后执行。
type Stager interface {
	Stage(ctx context.Context, upload *Upload) (gradio.FileRef, func(), error)
}

// TempFileStager 写入临时文件，由 Gradio 客户端上传到 Space
type TempFileStager struct {
	// Dir 临时目录，为空时使用系统默认目录
	Dir string
}

func (s *TempFileStager) Stage(_ context.Context, upload *Upload) (gradio.FileRef, func(), error) {
	ext := utils.GetExtensionFromMimeType(uploadMimeType(upload))

	f, err := os.CreateTemp(s.Dir, "roomdecor-*"+ext)
	if err != nil {
		return gradio.FileRef{}, nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()

	if _, err := f.Write(upload.Data); err != nil {
		f.Close()
		os.Remove(path)
		return gradio.FileRef{}, nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return gradio.FileRef{}, nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	common.WithFields(map[string]interface{}{
		"file": path,
		"size": len(upload.Data),
	}).Debug("Staged uploaded image in temp file")

	cleanup := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			common.WithError(err).WithField("file", path).Warn("Failed to remove temp file")
		}
	}
	return gradio.HandleFile(path), cleanup, nil
}

// OSSStager 上传到 S3 兼容存储，把带签名的 URL 交给 Space 自行下载
type OSSStager struct {
	Client    oss.OSSIface
	Bucket    string
	ExpiresIn int64
}

func (s *OSSStager) Stage(ctx context.Context, upload *Upload) (gradio.FileRef, func(), error) {
	mimeType := uploadMimeType(upload)
	key := utils.GenerateImagePath("uploads") + utils.GenerateImageFileName(mimeType)

	url, err := s.Client.UploadFileWithURL(ctx, s.Bucket, key, bytes.NewReader(upload.Data), mimeType, s.ExpiresIn)
	if err != nil {
		return gradio.FileRef{}, nil, fmt.Errorf("failed to upload image to OSS: %w", err)
	}

	common.WithFields(map[string]interface{}{
		"bucket": s.Bucket,
		"key":    key,
	}).Debug("Staged uploaded image in OSS")

	// 对象由存储桶生命周期规则清理
	return gradio.HandleFile(url), func() {}, nil
}

// uploadMimeType 优先使用声明的图片类型，否则按内容和文件名推断
func uploadMimeType(upload *Upload) string {
	if strings.HasPrefix(upload.ContentType, "image/") {
		return upload.ContentType
	}
	return utils.SniffMimeType(upload.Data, upload.Filename)
}
