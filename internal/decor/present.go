package decor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"roomdecor/common"
	"roomdecor/internal/utils"
)

// ViewKind 结果的展示方式
type ViewKind string

const (
	ViewURL          ViewKind = "url"
	ViewLocal        ViewKind = "local"
	ViewMissing      ViewKind = "missing"
	ViewNotImage     ViewKind = "not_image"
	ViewUnrecognized ViewKind = "unrecognized"
)

// View 页面或工具输出所需的展示数据
type View struct {
	Kind ViewKind
	// Src 可直接用于 <img src> 的地址（URL 或 data URI）
	Src     string
	Caption string
	// Path 本地不存在或不是图片的返回路径
	Path string
	// Raw 无法识别时原始返回值的 JSON 表示
	Raw string
}

// Present 根据结果决定展示方式：URL 直接展示，存在的本地文件内联为 data URI，
// 不存在的路径、内容不是图片的文件和无法识别的返回值只展示路径或原始值。
func Present(res *Result, caption string) View {
	if !res.Recognized {
		return View{Kind: ViewUnrecognized, Caption: caption, Raw: formatRaw(res.Raw)}
	}

	ref := res.ImageRef
	if utils.IsHTTPURL(ref) || strings.HasPrefix(ref, "data:image/") {
		return View{Kind: ViewURL, Src: ref, Caption: caption}
	}

	info, err := os.Stat(ref)
	if err != nil || !info.Mode().IsRegular() {
		return View{Kind: ViewMissing, Caption: caption, Path: ref}
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		common.WithError(err).WithField("path", ref).Warn("Failed to read returned image")
		return View{Kind: ViewMissing, Caption: caption, Path: ref}
	}
	// 只按内容判断，文件名不可信
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		common.WithFields(map[string]interface{}{
			"path":         ref,
			"content_type": mimeType,
		}).Warn("Returned local file is not an image")
		return View{Kind: ViewNotImage, Caption: caption, Path: ref}
	}
	return View{
		Kind:    ViewLocal,
		Src:     utils.ToDataURI(data, mimeType),
		Caption: caption,
		Path:    ref,
	}
}

// formatRaw 把原始返回值格式化为缩进 JSON，无法编码时退回 %v
func formatRaw(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
