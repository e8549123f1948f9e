package layout

// Measurer 是布局引擎的度量后端：给定文本与样式，返回渲染后的宽高（mm）。
// 实现必须是 (text, style) 的纯函数，同一次布局内多次调用结果一致。
type Measurer interface {
	Measure(text string, style TextStyle) (width, height float64, err error)
}

// MeasureFunc 允许用函数直接充当 Measurer，主要用于测试。
type MeasureFunc func(text string, style TextStyle) (width, height float64, err error)

func (f MeasureFunc) Measure(text string, style TextStyle) (float64, float64, error) {
	return f(text, style)
}

type measureKey struct {
	text  string
	style TextStyle
}

type measurement struct {
	width  float64
	height float64
}

// memoMeasurer 在一次布局运行内缓存度量结果，运行结束即丢弃；
// 不跨运行、不跨 goroutine 共享，因此无需加锁。
type memoMeasurer struct {
	inner Measurer
	cache map[measureKey]measurement
}

func newMemoMeasurer(inner Measurer) *memoMeasurer {
	return &memoMeasurer{
		inner: inner,
		cache: map[measureKey]measurement{},
	}
}

func (m *memoMeasurer) Measure(text string, style TextStyle) (float64, float64, error) {
	key := measureKey{text: text, style: style}
	if got, ok := m.cache[key]; ok {
		return got.width, got.height, nil
	}
	w, h, err := m.inner.Measure(text, style)
	if err != nil {
		return 0, 0, err
	}
	m.cache[key] = measurement{width: w, height: h}
	return w, h, nil
}
