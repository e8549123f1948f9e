package layout

import (
	"fmt"
	"strings"

	"github.com/ByLCY/hymnal/songbook"
)

const (
	// minShrinkScale 对应原始歌本实现里字号最低从 14pt 缩到 6pt。
	minShrinkScale = 6.0 / 14.0
	// eps 用于浮点高度比较，避免在刚好填满一栏时误判换栏。
	eps = 1e-6
)

// Build 对整本歌本执行布局：流式排版正文，并对目录做不动点迭代，
// 直到目录条目里的页码与实际放置结果一致。返回的放置表按文档序排列，
// 每一行恰好出现一次，阅读顺序单调不回退。
func Build(book *songbook.Songbook, geom PageGeometry, opts BuildOptions) (*Result, error) {
	if book == nil {
		return nil, fmt.Errorf("歌本为空")
	}
	if opts.Measurer == nil {
		return nil, fmt.Errorf("layout: 缺少度量后端 Measurer")
	}
	if err := geom.Validate(); err != nil {
		return nil, err
	}

	meas := newMemoMeasurer(opts.Measurer)
	hasCover := book.Meta.Name != ""

	run, entries, err := resolveToc(book, geom, meas, hasCover, opts.SectionGap)
	if err != nil {
		return nil, err
	}
	bars, err := resolveBars(book, run)
	if err != nil {
		return nil, err
	}

	return &Result{
		Geometry:   geom,
		Meta:       book.Meta,
		HasCover:   hasCover,
		Placements: run.placements,
		Toc:        entries,
		Bars:       bars,
		PageCount:  run.pageCount,
	}, nil
}

// pendingLine 是尚未定位的一行：文本、样式与缩放后的宽高。
type pendingLine struct {
	kind    PlacementKind
	section int
	line    int
	text    string
	style   TextStyle
	width   float64
	height  float64
	scale   float64
}

// flowRun 保存一次正向排版的全部游标状态与产出。
type flowRun struct {
	geom     PageGeometry
	meas     Measurer
	gap      float64
	hasCover bool

	colH float64
	colW float64

	page   int
	col    int
	offset float64

	placements []Placement
	titlePages []int
	pageCount  int
}

// flowOnce 按给定的目录条目（可为 nil，表示不预留目录空间）
// 对整本歌本做一次单向贪心排版。
func flowOnce(book *songbook.Songbook, geom PageGeometry, meas Measurer, entries []TocEntry, hasCover bool, gap float64) (*flowRun, error) {
	f := &flowRun{
		geom:     geom,
		meas:     meas,
		gap:      gap,
		hasCover: hasCover,
		colH:     geom.ColumnHeight(),
		colW:     geom.ColumnWidth(),
	}
	if hasCover {
		// 第 0 页整页留给封面，内容从第 1 页排起。
		f.page = 1
		f.pageCount = 1
	}

	if entries != nil {
		toc, err := f.tocLines(book, entries)
		if err != nil {
			return nil, err
		}
		f.placeUnit(-1, toc)
	}

	for i := range book.Hymns {
		if err := f.flowHymn(i, book.Hymns[i]); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// flowHymn 放置一首歌：标题块（标题、分隔线、右对齐的细节行）、
// 各段落与可选的落款行。标题块与首段遵守孤行策略：二者放不进当前栏
// 剩余空间而能共同放进一整栏时，标题随首段一起换栏，绝不单独留在栏底。
func (f *flowRun) flowHymn(idx int, h songbook.Hymn) error {
	scale, err := f.shrinkScale(idx, h)
	if err != nil {
		return err
	}

	block, err := f.titleBlock(idx, h)
	if err != nil {
		return err
	}
	first, err := f.sectionLines(idx, 0, h.Sections[0], scale)
	if err != nil {
		return err
	}

	// 孤行策略：标题块加上首段（整段放不进一栏时退化为首段首行）
	// 能共同放进一整空栏时，不允许二者被栏/页边界分开。
	need := sumHeights(first)
	if need > f.colH {
		need = first[0].height
	}
	blockH := sumHeights(block)
	if blockH+f.gap+need <= f.colH+eps && blockH+f.gap+need > f.colH-f.offset+eps {
		f.advance()
	}

	titleAt := len(f.placements)
	f.placeUnit(idx, block)
	f.titlePages = append(f.titlePages, f.placements[titleAt].Page)

	for j := range h.Sections {
		lines := first
		if j > 0 {
			if lines, err = f.sectionLines(idx, j, h.Sections[j], scale); err != nil {
				return err
			}
		}
		f.placeUnit(idx, lines)
	}

	if h.ReceivedAt != "" {
		tail, err := f.makeLine(idx, KindReceived, -1, -1, fmt.Sprintf("(%s)", h.ReceivedAt), StyleReceived, 1)
		if err != nil {
			return err
		}
		f.placeUnit(idx, []pendingLine{tail})
	}
	return nil
}

// placeUnit 按既定策略放置一组行：整体放得下当前栏就整体放下（规则：
// 能留在当前栏就留，减少总页数）；当前栏放不下而一整空栏放得下就先换栏；
// 比一整栏还高才按行边界拆分，填满剩余空间后跨栏续排（溢出回退）。
func (f *flowRun) placeUnit(hymn int, lines []pendingLine) {
	if len(lines) == 0 {
		return
	}
	total := sumHeights(lines)
	switch {
	case total <= f.colH-f.offset+eps:
		// 留在当前栏
	case total <= f.colH+eps:
		f.advance()
	default:
		// 溢出回退：逐行填充，放不下当前行时换栏
		for _, ln := range lines {
			if ln.height > f.colH-f.offset+eps {
				f.advance()
			}
			f.place(hymn, ln)
		}
		f.offset += f.gap
		return
	}
	for _, ln := range lines {
		f.place(hymn, ln)
	}
	f.offset += f.gap
}

func (f *flowRun) place(hymn int, ln pendingLine) {
	f.placements = append(f.placements, Placement{
		Kind:    ln.kind,
		Hymn:    hymn,
		Section: ln.section,
		Line:    ln.line,
		Page:    f.page,
		Column:  f.col,
		Offset:  f.offset,
		Text:    ln.text,
		Style:   ln.style,
		Width:   ln.width,
		Height:  ln.height,
		Scale:   ln.scale,
	})
	f.offset += ln.height
	if f.page+1 > f.pageCount {
		f.pageCount = f.page + 1
	}
}

// advance 换到下一栏，栏用尽时翻页；新栏从顶部排起。
func (f *flowRun) advance() {
	f.col++
	if f.col >= f.geom.ColumnsPerPage {
		f.col = 0
		f.page++
	}
	f.offset = 0
}

// makeLine 度量一行并构造 pendingLine。单行高度超过一栏即为致命几何错误。
func (f *flowRun) makeLine(hymn int, kind PlacementKind, section, line int, text string, style TextStyle, scale float64) (pendingLine, error) {
	w, h, err := f.meas.Measure(text, style)
	if err != nil {
		return pendingLine{}, fmt.Errorf("度量文本失败: %w", err)
	}
	w *= scale
	h *= scale
	if h > f.colH+eps {
		return pendingLine{}, fmt.Errorf("%w: 第 %d 首的一行高 %.2fmm 超过栏高 %.2fmm", ErrGeometryTooSmall, hymn, h, f.colH)
	}
	return pendingLine{
		kind:    kind,
		section: section,
		line:    line,
		text:    text,
		style:   style,
		width:   w,
		height:  h,
		scale:   scale,
	}, nil
}

func (f *flowRun) titleBlock(idx int, h songbook.Hymn) ([]pendingLine, error) {
	title, err := f.makeLine(idx, KindTitle, -1, -1, titleText(idx, h), StyleTitle, 1)
	if err != nil {
		return nil, err
	}
	// 分隔线贴着标题底边绘制，自身不占排版高度。
	block := []pendingLine{title, {
		kind:    KindRule,
		section: -1,
		line:    -1,
		style:   StyleTitle,
		width:   f.colW,
		scale:   1,
	}}
	if detail := detailText(h); detail != "" {
		dl, err := f.makeLine(idx, KindDetail, -1, -1, detail, StyleDetail, 1)
		if err != nil {
			return nil, err
		}
		block = append(block, dl)
	}
	return block, nil
}

func (f *flowRun) sectionLines(hymnIdx, sectionIdx int, s songbook.Section, scale float64) ([]pendingLine, error) {
	lines := make([]pendingLine, 0, len(s.Lines))
	for li, ln := range s.Lines {
		pl, err := f.makeLine(hymnIdx, KindLine, sectionIdx, li, ln.Text, styleOf(ln.Style), scale)
		if err != nil {
			return nil, err
		}
		lines = append(lines, pl)
	}
	return lines, nil
}

// shrinkScale 计算一首歌的正文缩放系数：最宽的正文行超出栏宽时线性缩小，
// 下限为原始字号的 6/14。标题与落款不参与缩放。
func (f *flowRun) shrinkScale(idx int, h songbook.Hymn) (float64, error) {
	maxW := 0.0
	for _, s := range h.Sections {
		for _, ln := range s.Lines {
			w, _, err := f.meas.Measure(ln.Text, styleOf(ln.Style))
			if err != nil {
				return 0, fmt.Errorf("度量第 %d 首正文失败: %w", idx, err)
			}
			if w > maxW {
				maxW = w
			}
		}
	}
	if maxW <= f.colW || maxW == 0 {
		return 1, nil
	}
	scale := f.colW / maxW
	if scale < minShrinkScale {
		scale = minShrinkScale
	}
	return scale, nil
}

// tocLines 根据候选目录条目构造目录伪段落：一行标题加每首歌一行。
// 条目文本以制表符分隔歌名与页码标签，页码参与度量，
// 使目录自身占用的空间忠实反映最终渲染结果。
func (f *flowRun) tocLines(book *songbook.Songbook, entries []TocEntry) ([]pendingLine, error) {
	heading := book.Meta.TocTitle
	if heading == "" {
		heading = "Índice"
	}
	head, err := f.makeLine(-1, KindTocHeading, -1, -1, heading, StyleTocHeading, 1)
	if err != nil {
		return nil, err
	}
	lines := []pendingLine{head}
	for _, e := range entries {
		text := fmt.Sprintf("%02d. %s\t%d", e.Hymn+1, e.Title, f.pageLabel(e.Page))
		ln, err := f.makeLine(-1, KindTocEntry, -1, e.Hymn, text, StyleTocEntry, 1)
		if err != nil {
			return nil, err
		}
		lines = append(lines, ln)
	}
	return lines, nil
}

// pageLabel 把页索引转成读者看到的页码：有封面时封面不计数。
func (f *flowRun) pageLabel(page int) int {
	if f.hasCover {
		return page
	}
	return page + 1
}

// PageLabel 是渲染页脚与目录页码时使用的编号规则，与布局阶段保持一致。
func (r *Result) PageLabel(page int) int {
	if r.HasCover {
		return page
	}
	return page + 1
}

func sumHeights(lines []pendingLine) float64 {
	total := 0.0
	for _, ln := range lines {
		total += ln.height
	}
	return total
}

// titleText 按原始歌本的版式拼标题：两位序号、歌名与可选的歌号。
func titleText(idx int, h songbook.Hymn) string {
	if h.Number > 0 {
		return fmt.Sprintf("%02d. %s (%02d)", idx+1, h.Title, h.Number)
	}
	return fmt.Sprintf("%02d. %s", idx+1, h.Title)
}

// detailText 拼接标题下方右对齐的细节行：奉献对象、附加说明与曲风。
func detailText(h songbook.Hymn) string {
	parts := []string{}
	if h.OfferedTo != "" {
		parts = append(parts, "Ofertado a "+h.OfferedTo)
	}
	if h.ExtraInstructions != "" {
		parts = append(parts, h.ExtraInstructions)
	}
	if h.Style != "" {
		parts = append(parts, h.Style)
	}
	return strings.Join(parts, " - ")
}
