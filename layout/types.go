package layout

// 该文件定义布局结果与页面几何，供布局计算、渲染与调试 JSON 共用。

import (
	"errors"
	"fmt"

	"github.com/ByLCY/hymnal/songbook"
)

// ErrGeometryTooSmall 表示页面几何小到任何一行都放不下，属于致命配置错误。
var ErrGeometryTooSmall = errors.New("页面几何过小")

// ErrTocDidNotConverge 表示目录的不动点迭代在次数上限内未收敛，
// 通常意味着几何与内容存在病态组合；宁可失败也不输出错误页码。
var ErrTocDidNotConverge = errors.New("目录页码未收敛")

// PageGeometry 描述页面尺寸、分栏与边距，单位均为 mm。
// 布局运行期间视为只读。
type PageGeometry struct {
	PageWidth      float64 `json:"pageWidth"`
	PageHeight     float64 `json:"pageHeight"`
	ColumnsPerPage int     `json:"columnsPerPage"`
	ColumnGutter   float64 `json:"columnGutter"`
	MarginTop      float64 `json:"marginTop"`
	MarginBottom   float64 `json:"marginBottom"`
	MarginLeft     float64 `json:"marginLeft"`
	MarginRight    float64 `json:"marginRight"`
}

// DefaultGeometry 对应原始歌本的开本：4×6 英寸、半英寸边距、单栏。
func DefaultGeometry() PageGeometry {
	return PageGeometry{
		PageWidth:      4 * 25.4,
		PageHeight:     6 * 25.4,
		ColumnsPerPage: 1,
		ColumnGutter:   4,
		MarginTop:      0.5 * 25.4,
		MarginBottom:   0.5 * 25.4,
		MarginLeft:     0.5 * 25.4,
		MarginRight:    0.5 * 25.4,
	}
}

// Validate 校验所有几何参数均为正值，且分栏后仍有可用空间。
func (g PageGeometry) Validate() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"page_width", g.PageWidth},
		{"page_height", g.PageHeight},
		{"column_gutter", g.ColumnGutter},
		{"margin_top", g.MarginTop},
		{"margin_bottom", g.MarginBottom},
		{"margin_left", g.MarginLeft},
		{"margin_right", g.MarginRight},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s 必须为正值（当前 %g）", ErrGeometryTooSmall, p.name, p.value)
		}
	}
	if g.ColumnsPerPage < 1 {
		return fmt.Errorf("%w: columns_per_page 必须至少为 1", ErrGeometryTooSmall)
	}
	if g.ColumnHeight() <= 0 {
		return fmt.Errorf("%w: 边距耗尽了页面高度", ErrGeometryTooSmall)
	}
	if g.ColumnWidth() <= 0 {
		return fmt.Errorf("%w: 边距与栏间距耗尽了页面宽度", ErrGeometryTooSmall)
	}
	return nil
}

// ColumnHeight 返回单栏的可用高度。
func (g PageGeometry) ColumnHeight() float64 {
	return g.PageHeight - g.MarginTop - g.MarginBottom
}

// ColumnWidth 返回单栏的可用宽度。
func (g PageGeometry) ColumnWidth() float64 {
	usable := g.PageWidth - g.MarginLeft - g.MarginRight
	usable -= g.ColumnGutter * float64(g.ColumnsPerPage-1)
	return usable / float64(g.ColumnsPerPage)
}

// ColumnX 返回第 col 栏左边缘的页面横坐标。
func (g PageGeometry) ColumnX(col int) float64 {
	return g.MarginLeft + float64(col)*(g.ColumnWidth()+g.ColumnGutter)
}

// ResolveGeometry 将 YAML 中带单位的几何配置解析为 mm 数值，
// 未给出的字段沿用 DefaultGeometry 的默认值。
func ResolveGeometry(spec songbook.GeometrySpec) (PageGeometry, error) {
	g := DefaultGeometry()
	lengths := []struct {
		name  string
		raw   string
		field *float64
	}{
		{"page_width", spec.PageWidth, &g.PageWidth},
		{"page_height", spec.PageHeight, &g.PageHeight},
		{"column_gutter", spec.ColumnGutter, &g.ColumnGutter},
		{"margin_top", spec.MarginTop, &g.MarginTop},
		{"margin_bottom", spec.MarginBottom, &g.MarginBottom},
		{"margin_left", spec.MarginLeft, &g.MarginLeft},
		{"margin_right", spec.MarginRight, &g.MarginRight},
	}
	for _, l := range lengths {
		if l.raw == "" {
			continue
		}
		mm := ParseRawLengthStr(l.raw).ToMM()
		if mm <= 0 {
			return PageGeometry{}, fmt.Errorf("%w: %s=%q 不是有效的正长度", ErrGeometryTooSmall, l.name, l.raw)
		}
		*l.field = mm
	}
	if spec.ColumnsPerPage != 0 {
		if spec.ColumnsPerPage < 0 {
			return PageGeometry{}, fmt.Errorf("%w: columns_per_page=%d 无效", ErrGeometryTooSmall, spec.ColumnsPerPage)
		}
		g.ColumnsPerPage = spec.ColumnsPerPage
	}
	if err := g.Validate(); err != nil {
		return PageGeometry{}, err
	}
	return g, nil
}

// TextStyle 标识一个可测量/可绘制的文本角色，渲染器据此选择字体与字号。
type TextStyle int

const (
	StyleLyric TextStyle = iota
	StyleChord
	StyleTitle
	StyleDetail
	StyleReceived
	StyleTocHeading
	StyleTocEntry
)

func (s TextStyle) String() string {
	switch s {
	case StyleChord:
		return "chord"
	case StyleTitle:
		return "title"
	case StyleDetail:
		return "detail"
	case StyleReceived:
		return "received"
	case StyleTocHeading:
		return "tocHeading"
	case StyleTocEntry:
		return "tocEntry"
	default:
		return "lyric"
	}
}

// MarshalText 使调试 JSON 输出可读的样式名。
func (s TextStyle) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func styleOf(ls songbook.LineStyle) TextStyle {
	if ls == songbook.Chord {
		return StyleChord
	}
	return StyleLyric
}

// PlacementKind 标识放置条目的种类。
type PlacementKind int

const (
	KindTitle PlacementKind = iota
	KindRule
	KindDetail
	KindLine
	KindReceived
	KindTocHeading
	KindTocEntry
)

func (k PlacementKind) String() string {
	switch k {
	case KindTitle:
		return "title"
	case KindRule:
		return "rule"
	case KindDetail:
		return "detail"
	case KindReceived:
		return "received"
	case KindTocHeading:
		return "tocHeading"
	case KindTocEntry:
		return "tocEntry"
	default:
		return "line"
	}
}

// MarshalText 使调试 JSON 输出可读的种类名。
func (k PlacementKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Placement 是一条放置指令：某行文本落在哪一页、哪一栏、哪个纵向偏移上。
// 布局引擎产出后渲染器只读；目录迭代时整表重建而非就地修改。
type Placement struct {
	Kind    PlacementKind `json:"kind"`
	Hymn    int           `json:"hymn"`    // 歌序号；目录条目为 -1
	Section int           `json:"section"` // 段序号；非正文为 -1
	Line    int           `json:"line"`    // 段内行号；目录条目存放对应歌序号
	Page    int           `json:"page"`
	Column  int           `json:"column"`
	Offset  float64       `json:"offset"` // 距栏顶的 mm 偏移
	Text    string        `json:"text"`
	Style   TextStyle     `json:"style"`
	Width   float64       `json:"width"`
	Height  float64       `json:"height"`
	Scale   float64       `json:"scale"` // 本歌的字号缩放系数，1 表示未缩放
}

// TocEntry 是目录中的一条：歌名与其标题最终落到的页索引。
type TocEntry struct {
	Hymn  int    `json:"hymn"`
	Title string `json:"title"`
	Page  int    `json:"page"`
}

// Bar 是一条重复竖线，坐标相对所在栏的左边缘（X 通常为负，画进栏外侧）。
type Bar struct {
	Page   int     `json:"page"`
	Column int     `json:"column"`
	Level  int     `json:"level"`
	X      float64 `json:"x"`
	YStart float64 `json:"yStart"`
	YEnd   float64 `json:"yEnd"`
}

// Result 保存一次完整布局的产物。
type Result struct {
	Geometry   PageGeometry      `json:"geometry"`
	Meta       songbook.BookMeta `json:"meta"`
	HasCover   bool              `json:"hasCover"`
	Placements []Placement       `json:"placements"`
	Toc        []TocEntry        `json:"toc"`
	Bars       []Bar             `json:"bars,omitempty"`
	PageCount  int               `json:"pageCount"`
}
