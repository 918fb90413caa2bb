package gradio

import "context"

// ClientIface 绑定到单个 Gradio Space 的远程调用句柄
type ClientIface interface {
	// Predict 调用 Space 上名为 apiName 的接口（例如 "/predict"）。
	// args 中的 FileRef 会在调用前转换为 Space 可读取的文件引用。
	Predict(ctx context.Context, apiName string, args ...any) (any, error)
}
