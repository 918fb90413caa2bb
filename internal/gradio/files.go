package gradio

import (
	"net/url"
	"path"
	"path/filepath"

	"roomdecor/internal/utils"
)

const fileDataType = "gradio.FileData"

// FileRef 指向本地文件或远程 URL 的文件引用，作为 Predict 参数传入
type FileRef struct {
	Location string
}

// HandleFile 用本地路径或 http(s) URL 构造文件引用
func HandleFile(pathOrURL string) FileRef {
	return FileRef{Location: pathOrURL}
}

// IsURL 引用是否为远程 URL
func (f FileRef) IsURL() bool {
	return utils.IsHTTPURL(f.Location)
}

// Name 返回文件名，用作 orig_name
func (f FileRef) Name() string {
	if f.IsURL() {
		if u, err := url.Parse(f.Location); err == nil {
			return path.Base(u.Path)
		}
	}
	return filepath.Base(f.Location)
}

// FileData Gradio 接口中文件参数的 JSON 结构
type FileData struct {
	Path     string   `json:"path"`
	URL      string   `json:"url,omitempty"`
	OrigName string   `json:"orig_name,omitempty"`
	Meta     fileMeta `json:"meta"`
}

type fileMeta struct {
	Type string `json:"_type"`
}

func newFileData(serverPath, fileURL, origName string) FileData {
	return FileData{
		Path:     serverPath,
		URL:      fileURL,
		OrigName: origName,
		Meta:     fileMeta{Type: fileDataType},
	}
}

// isFileData 判断解码后的对象是否为 Gradio 文件输出
func isFileData(m map[string]any) bool {
	if meta, ok := m["meta"].(map[string]any); ok {
		if t, _ := meta["_type"].(string); t == fileDataType {
			return true
		}
	}
	// 旧版本 Gradio 不带 meta，按字段组合判断
	_, hasPath := m["path"].(string)
	_, hasURL := m["url"]
	_, hasName := m["orig_name"]
	return hasPath && hasURL && hasName
}
