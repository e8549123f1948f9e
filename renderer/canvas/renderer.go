// Package canvasrenderer 基于 github.com/tdewolff/canvas 将布局结果绘制为 PDF，
// 同时向布局引擎提供真实的字体度量。
package canvasrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/ByLCY/hymnal/layout"
	"github.com/ByLCY/hymnal/renderer"
)

const (
	ruleStrokeWidth = 0.3 // 标题下横线的线宽（mm）
	barStrokeWidth  = 0.4 // 重复竖线的线宽（mm）
	leaderGap       = 1.0 // 目录条目与引导点之间的留白（mm）
)

// StyleSizes 给出每种文本角色的基准字号，单位 pt。
// 正文与标题同字号，细节行与落款更小，对应原始歌本的排版习惯。
type StyleSizes struct {
	Title      float64
	Lyric      float64
	Chord      float64
	Detail     float64
	Received   float64
	TocHeading float64
	TocEntry   float64
	PageNumber float64
	CoverName  float64
	CoverSmall float64
}

// DefaultSizes 返回原始歌本使用的字号组合。
func DefaultSizes() StyleSizes {
	return StyleSizes{
		Title:      14,
		Lyric:      14,
		Chord:      14,
		Detail:     10,
		Received:   10,
		TocHeading: 14,
		TocEntry:   12,
		PageNumber: 12,
		CoverName:  24,
		CoverSmall: 14,
	}
}

// Resource 可以通过 Bytes 或 Path 二选一提供。
type Resource struct {
	Bytes []byte
	Path  string
}

// Options 配置画布渲染器。
type Options struct {
	BaseDir string
	Font    Resource // 必填：全书共用一款 TTF 字体
	Sizes   StyleSizes
}

// Renderer 持有字体缓存，可在多次 Measure/Render 间复用。
type Renderer struct {
	baseDir string
	font    Resource
	sizes   StyleSizes

	fontMu sync.Mutex
	family *canvas.FontFamily
	faces  map[faceKey]*canvas.FontFace
}

var (
	_ renderer.Renderer = (*Renderer)(nil)
	_ layout.Measurer   = (*Renderer)(nil)
)

type faceKey struct {
	style layout.TextStyle
	scale float64
}

// NewRenderer 创建以 baseDir 为资源根目录、从 fontPath 加载字体的渲染器。
func NewRenderer(baseDir, fontPath string) *Renderer {
	return NewRendererWithOptions(Options{BaseDir: baseDir, Font: Resource{Path: fontPath}})
}

// NewRendererWithOptions 按选项创建渲染器，未给出的字号使用 DefaultSizes。
func NewRendererWithOptions(opts Options) *Renderer {
	sizes := opts.Sizes
	if sizes == (StyleSizes{}) {
		sizes = DefaultSizes()
	}
	return &Renderer{
		baseDir: opts.BaseDir,
		font:    opts.Font,
		sizes:   sizes,
		faces:   map[faceKey]*canvas.FontFace{},
	}
}

// Measure 实现 layout.Measurer：返回 text 在指定样式的基准字号下的宽高（mm）。
// 不做换行，整行不拆是布局引擎的约定。
func (r *Renderer) Measure(text string, style layout.TextStyle) (float64, float64, error) {
	face, err := r.face(style, 1)
	if err != nil {
		return 0, 0, err
	}
	metrics := face.Metrics()
	return toMm(face.TextWidth(text)), toMm(metrics.LineHeight), nil
}

// Render 将布局结果渲染为单个 PDF 的字节序列。
func (r *Renderer) Render(result *layout.Result) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("%w: 布局结果为空", renderer.ErrRenderFailure)
	}
	if result.PageCount <= 0 {
		return nil, fmt.Errorf("%w: 缺少可渲染的页面", renderer.ErrRenderFailure)
	}

	geom := result.Geometry
	var buf bytes.Buffer
	writer := pdf.New(&buf, geom.PageWidth, geom.PageHeight, nil)
	writer.SetInfo(result.Meta.Name, "", "", result.Meta.Owner, "hymnal")

	byPage := placementsByPage(result)
	barsByPage := map[int][]layout.Bar{}
	for _, b := range result.Bars {
		barsByPage[b.Page] = append(barsByPage[b.Page], b)
	}

	for page := 0; page < result.PageCount; page++ {
		if page > 0 {
			writer.NewPage(geom.PageWidth, geom.PageHeight)
		}
		c := canvas.New(geom.PageWidth, geom.PageHeight)
		ctx := canvas.NewContext(c)
		ctx.SetCoordSystem(canvas.CartesianIV) // 与布局一致，左上角为原点

		if result.HasCover && page == 0 {
			if err := r.drawCover(ctx, result); err != nil {
				return nil, fmt.Errorf("%w: %v", renderer.ErrRenderFailure, err)
			}
		} else {
			if err := r.drawPage(ctx, geom, byPage[page], barsByPage[page]); err != nil {
				return nil, fmt.Errorf("%w: %v", renderer.ErrRenderFailure, err)
			}
			if err := r.drawPageNumber(ctx, geom, result.PageLabel(page)); err != nil {
				return nil, fmt.Errorf("%w: %v", renderer.ErrRenderFailure, err)
			}
		}
		c.RenderTo(writer)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: 写入 PDF 失败: %v", renderer.ErrRenderFailure, err)
	}
	return buf.Bytes(), nil
}

func placementsByPage(result *layout.Result) map[int][]layout.Placement {
	byPage := map[int][]layout.Placement{}
	for _, p := range result.Placements {
		byPage[p.Page] = append(byPage[p.Page], p)
	}
	return byPage
}

func (r *Renderer) drawPage(ctx *canvas.Context, geom layout.PageGeometry, placements []layout.Placement, bars []layout.Bar) error {
	colW := geom.ColumnWidth()
	for _, p := range placements {
		x := geom.ColumnX(p.Column)
		y := geom.MarginTop + p.Offset
		switch p.Kind {
		case layout.KindRule:
			drawHLine(ctx, x, y, colW, ruleStrokeWidth)
		case layout.KindDetail, layout.KindReceived:
			if err := r.drawText(ctx, x+colW, y, p.Text, p.Style, p.Scale, canvas.Right); err != nil {
				return err
			}
		case layout.KindTocEntry:
			if err := r.drawTocEntry(ctx, x, y, colW, p); err != nil {
				return err
			}
		default:
			if err := r.drawText(ctx, x, y, p.Text, p.Style, p.Scale, canvas.Left); err != nil {
				return err
			}
		}
	}
	for _, b := range bars {
		x := geom.ColumnX(b.Column) + b.X
		drawVLine(ctx, x, geom.MarginTop+b.YStart, geom.MarginTop+b.YEnd, barStrokeWidth)
	}
	return nil
}

// drawTocEntry 把“标题\t页码”拆成左右两段，中间填充引导点。
func (r *Renderer) drawTocEntry(ctx *canvas.Context, x, y, colW float64, p layout.Placement) error {
	title, page, found := strings.Cut(p.Text, "\t")
	if !found {
		return r.drawText(ctx, x, y, p.Text, p.Style, p.Scale, canvas.Left)
	}
	face, err := r.face(p.Style, p.Scale)
	if err != nil {
		return err
	}
	if err := r.drawText(ctx, x, y, title, p.Style, p.Scale, canvas.Left); err != nil {
		return err
	}
	if err := r.drawText(ctx, x+colW, y, page, p.Style, p.Scale, canvas.Right); err != nil {
		return err
	}
	left := toMm(face.TextWidth(title)) + leaderGap
	right := colW - toMm(face.TextWidth(page)) - leaderGap
	dotW := toMm(face.TextWidth("."))
	if dotW <= 0 || right-left < dotW {
		return nil
	}
	dots := strings.Repeat(".", int((right-left)/dotW))
	return r.drawText(ctx, x+left, y, dots, p.Style, p.Scale, canvas.Left)
}

func (r *Renderer) drawPageNumber(ctx *canvas.Context, geom layout.PageGeometry, label int) error {
	x := geom.PageWidth - geom.MarginRight
	y := geom.PageHeight - geom.MarginBottom/2
	return r.drawText(ctx, x, y, fmt.Sprintf("%d", label), layout.StyleDetail, 1, canvas.Right)
}

// drawCover 绘制封面：整页图片按比例缩放居中，盖一层半透明白色后写书名信息。
func (r *Renderer) drawCover(ctx *canvas.Context, result *layout.Result) error {
	geom := result.Geometry
	meta := result.Meta
	if meta.CoverImagePath != "" {
		img, err := r.loadImage(meta.CoverImagePath)
		if err != nil {
			return err
		}
		iw := float64(img.Bounds().Dx())
		ih := float64(img.Bounds().Dy())
		if iw > 0 && ih > 0 {
			scale := geom.PageWidth / iw
			if geom.PageHeight/ih < scale {
				scale = geom.PageHeight / ih
			}
			w := iw * scale
			h := ih * scale
			ctx.DrawImage((geom.PageWidth-w)/2, (geom.PageHeight-h)/2, img, canvas.DPMM(1/scale))
		}
		// 半透明白色柔化底图，保证文字可读
		ctx.SetFillColor(canvas.RGBA(1, 1, 1, 0.72))
		ctx.SetStrokeColor(color.RGBA{0, 0, 0, 0})
		ctx.DrawPath(0, 0, canvas.Rectangle(geom.PageWidth, geom.PageHeight))
	}

	centerX := geom.PageWidth / 2
	y := geom.PageHeight * 0.3
	if meta.IntroName != "" {
		if err := r.drawCoverLine(ctx, centerX, &y, meta.IntroName, r.sizes.CoverSmall); err != nil {
			return err
		}
	}
	if err := r.drawCoverLine(ctx, centerX, &y, meta.Name, r.sizes.CoverName); err != nil {
		return err
	}
	if meta.Owner != "" {
		y = geom.PageHeight - geom.MarginBottom*2
		if err := r.drawCoverLine(ctx, centerX, &y, meta.Owner, r.sizes.CoverSmall); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) drawCoverLine(ctx *canvas.Context, centerX float64, y *float64, text string, sizePt float64) error {
	face, err := r.faceAt(sizePt)
	if err != nil {
		return err
	}
	metrics := face.Metrics()
	ctx.DrawText(centerX, *y+toMm(metrics.Ascent), canvas.NewTextLine(face, text, canvas.Center))
	*y += toMm(metrics.LineHeight) * 1.5
	return nil
}

func (r *Renderer) drawText(ctx *canvas.Context, anchorX, top float64, text string, style layout.TextStyle, scale float64, align canvas.TextAlign) error {
	face, err := r.face(style, scale)
	if err != nil {
		return err
	}
	baseline := top + toMm(face.Metrics().Ascent)
	ctx.DrawText(anchorX, baseline, canvas.NewTextLine(face, text, align))
	return nil
}

func drawHLine(ctx *canvas.Context, x, y, width, stroke float64) {
	ctx.SetStrokeColor(canvas.Black)
	ctx.SetStrokeWidth(stroke)
	p := &canvas.Path{}
	p.MoveTo(0, 0)
	p.LineTo(width, 0)
	ctx.DrawPath(x, y, p)
}

func drawVLine(ctx *canvas.Context, x, y1, y2, stroke float64) {
	ctx.SetStrokeColor(canvas.Black)
	ctx.SetStrokeWidth(stroke)
	p := &canvas.Path{}
	p.MoveTo(0, 0)
	p.LineTo(0, y2-y1)
	ctx.DrawPath(x, y1, p)
}

func (r *Renderer) styleSize(style layout.TextStyle) float64 {
	switch style {
	case layout.StyleTitle:
		return r.sizes.Title
	case layout.StyleChord:
		return r.sizes.Chord
	case layout.StyleDetail:
		return r.sizes.Detail
	case layout.StyleReceived:
		return r.sizes.Received
	case layout.StyleTocHeading:
		return r.sizes.TocHeading
	case layout.StyleTocEntry:
		return r.sizes.TocEntry
	default:
		return r.sizes.Lyric
	}
}

func (r *Renderer) face(style layout.TextStyle, scale float64) (*canvas.FontFace, error) {
	if scale <= 0 {
		scale = 1
	}
	r.fontMu.Lock()
	defer r.fontMu.Unlock()
	key := faceKey{style: style, scale: scale}
	if face, ok := r.faces[key]; ok {
		return face, nil
	}
	family, err := r.ensureFamily()
	if err != nil {
		return nil, err
	}
	face := family.Face(r.styleSize(style)*scale, canvas.Black, canvas.FontRegular, canvas.FontNormal)
	r.faces[key] = face
	return face, nil
}

func (r *Renderer) faceAt(sizePt float64) (*canvas.FontFace, error) {
	r.fontMu.Lock()
	defer r.fontMu.Unlock()
	family, err := r.ensureFamily()
	if err != nil {
		return nil, err
	}
	return family.Face(sizePt, canvas.Black, canvas.FontRegular, canvas.FontNormal), nil
}

// ensureFamily 惰性加载字体；调用方需已持有 fontMu。
func (r *Renderer) ensureFamily() (*canvas.FontFamily, error) {
	if r.family != nil {
		return r.family, nil
	}
	data, err := r.loadFontBytes()
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily("hymnal")
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, fmt.Errorf("加载字体失败: %w", err)
	}
	r.family = family
	return family, nil
}

func (r *Renderer) loadFontBytes() ([]byte, error) {
	if len(r.font.Bytes) > 0 {
		return r.font.Bytes, nil
	}
	if r.font.Path == "" {
		return nil, fmt.Errorf("未配置字体文件")
	}
	path := r.font.Path
	if !filepath.IsAbs(path) && r.baseDir != "" {
		path = filepath.Join(r.baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取字体 %s 失败: %w", r.font.Path, err)
	}
	return data, nil
}

func (r *Renderer) loadImage(path string) (image.Image, error) {
	if !filepath.IsAbs(path) && r.baseDir != "" {
		path = filepath.Join(r.baseDir, path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("读取封面图片 %s 失败: %w", path, err)
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("解码封面图片 %s 失败: %w", path, err)
	}
	return img, nil
}

// toMm 将点(pt)转换为毫米(mm)。
func toMm(pt float64) float64 { return pt * layout.PtToMm }
