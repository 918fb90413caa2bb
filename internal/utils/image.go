package utils

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxDownloadBytes 下载远程图片时允许的最大字节数
const MaxDownloadBytes = 20 << 20

// DownloadImageFromURL 从 URL 下载图片，返回图片数据和 MIME 类型
func DownloadImageFromURL(ctx context.Context, url string) ([]byte, string, error) {
	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download image: status code %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(imageData) > MaxDownloadBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", MaxDownloadBytes)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = SniffMimeType(imageData, url)
	}

	return imageData, mimeType, nil
}

// SniffMimeType 先按内容检测 MIME 类型，无法识别时按文件名推断
func SniffMimeType(data []byte, name string) string {
	if detected := http.DetectContentType(data); strings.HasPrefix(detected, "image/") {
		return detected
	}
	return InferMimeTypeFromURL(name)
}

// InferMimeTypeFromURL 从 URL 或文件名推断 MIME 类型（不区分大小写）
func InferMimeTypeFromURL(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	switch strings.ToLower(filepath.Ext(url)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	// 默认返回 png，与上传临时文件的默认后缀一致
	return "image/png"
}

// GenerateImagePath 生成图片路径：<prefix>/yyyy-MM-dd/
func GenerateImagePath(prefix string) string {
	return fmt.Sprintf("%s/%s/", prefix, time.Now().Format("2006-01-02"))
}

// GenerateImageFileName 生成图片文件名：{uuid}.ext
func GenerateImageFileName(mimeType string) string {
	return uuid.NewString() + GetExtensionFromMimeType(mimeType)
}

// GetExtensionFromMimeType 根据 MIME 类型获取文件扩展名（不区分大小写）
func GetExtensionFromMimeType(mimeType string) string {
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ".png"
	}
}

// ToDataURI 将图片数据编码为 data URI
func ToDataURI(data []byte, mimeType string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// IsHTTPURL 判断字符串是否为 http(s) URL
func IsHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// TruncateForLog 截断长字符串用于日志，避免打印过长内容（如 base64）
func TruncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
