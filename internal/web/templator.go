package web

import (
	"bytes"
	_ "embed"
	"html/template"
	"sync"

	"roomdecor/internal/decor"
)

//go:embed assets/index.html
var indexTmpl string

const (
	pageTitle     = "Room Interior AI — Generate or Decorate"
	defaultPrompt = "Dragon blowing fire"
)

// PageParams 页面渲染参数
type PageParams struct {
	Title       string
	Prompt      string
	MaxUploadMB int
	// Warning 输入校验失败，未发起远程调用
	Warning string
	// Error 远程调用失败
	Error string
	View  *ViewParams
}

// ViewParams 结果区域
type ViewParams struct {
	Kind    string
	Src     template.URL
	Caption string
	Path    string
	Raw     string
}

func newViewParams(v decor.View) *ViewParams {
	return &ViewParams{
		Kind: string(v.Kind),
		// Src 只会是 http(s) URL 或 decor 生成的 data:image URI
		Src:     template.URL(v.Src),
		Caption: v.Caption,
		Path:    v.Path,
		Raw:     v.Raw,
	}
}

// Templator 首次使用时解析页面模板
type Templator struct {
	tmpl *template.Template
	once sync.Once
}

func (g *Templator) Render(params PageParams) ([]byte, error) {
	g.once.Do(func() {
		g.tmpl = template.Must(template.New("index").Parse(indexTmpl))
	})

	if params.Title == "" {
		params.Title = pageTitle
	}

	var data bytes.Buffer
	if err := g.tmpl.Execute(&data, params); err != nil {
		return nil, err
	}
	return data.Bytes(), nil
}
