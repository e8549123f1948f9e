// Package renderer 定义布局结果到最终产物（如 PDF）的输出接口。
package renderer

import (
	"errors"

	"github.com/ByLCY/hymnal/layout"
)

// ErrRenderFailure 表示后端在输出阶段失败，调用方可用 errors.Is 识别。
var ErrRenderFailure = errors.New("渲染失败")

// Renderer 将布局结果渲染为字节序列。
type Renderer interface {
	Render(result *layout.Result) ([]byte, error)
}
