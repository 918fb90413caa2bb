package decor

// Route 本次交互使用的远程接口
type Route string

const (
	// RouteText 仅提示词，调用文生图 Space
	RouteText Route = "text"
	// RouteImage 图片 + 提示词，调用装饰 Space
	RouteImage Route = "image"
)

// Upload 用户上传的图片
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Request 一次交互的输入，Image 为 nil 表示没有上传图片
type Request struct {
	Prompt string
	Image  *Upload
}

// Result 一次远程调用的结果
type Result struct {
	Route Route
	// Raw 远程接口返回的原始值，形状不做约定
	Raw any
	// ImageRef 识别出的图片路径或 URL，仅当 Recognized 为 true 时有效
	ImageRef   string
	Recognized bool
}
