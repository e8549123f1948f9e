package songbook

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// ErrMalformedDocument 表示输入的歌本结构不满足模型约束。
// 所有校验错误都会包装该哨兵值，便于调用方用 errors.Is 判断。
var ErrMalformedDocument = errors.New("歌本结构无效")

// LineStyle 区分歌词行与和弦行。
type LineStyle int

const (
	Lyric LineStyle = iota
	Chord
)

func (s LineStyle) String() string {
	switch s {
	case Chord:
		return "chord"
	default:
		return "lyric"
	}
}

// Line 是不可变的叶子节点：一行文本及其样式。
type Line struct {
	Text  string
	Style LineStyle
}

// SectionKind 区分主歌与副歌。
type SectionKind int

const (
	Verse SectionKind = iota
	Chorus
)

func (k SectionKind) String() string {
	switch k {
	case Chorus:
		return "chorus"
	default:
		return "verse"
	}
}

// Section 是歌内的一个段落。布局时段内的行不允许跨页/跨栏拆分，
// 除非整段超出一整栏的容量（见 layout 包的溢出回退）。
type Section struct {
	Kind  SectionKind
	Lines []Line
}

// Hymn 表示一首歌：标题、若干段落，以及来自原始歌本的可选元信息。
type Hymn struct {
	Number            int
	Title             string
	Style             string // 曲风，例如 "Valsa"
	OfferedTo         string
	ExtraInstructions string
	ReceivedAt        string
	// Repetitions 以 "start-end,start-end" 形式标注需要画重复竖线的行区间。
	Repetitions string
	Sections    []Section
}

// BookMeta 保存歌本级别的元信息（封面页与目录标题）。
// Name 为空时不生成封面页。
type BookMeta struct {
	IntroName      string
	Name           string
	Owner          string
	CoverImagePath string
	TocTitle       string
}

// Songbook 是加载后的整本歌本。构造完成后视为只读，
// 布局引擎只做文档序遍历，不做任何修改。
type Songbook struct {
	Meta  BookMeta
	Hymns []Hymn
}

// New 构造并校验歌本。校验失败时返回包装了 ErrMalformedDocument 的错误，
// 且会收集全部问题而非在第一处停下。
func New(meta BookMeta, hymns []Hymn) (*Songbook, error) {
	book := &Songbook{Meta: meta, Hymns: hymns}
	if err := book.validate(); err != nil {
		return nil, err
	}
	return book, nil
}

func (b *Songbook) validate() error {
	var errs error
	if len(b.Hymns) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: 歌本为空", ErrMalformedDocument))
	}
	for i, h := range b.Hymns {
		if strings.TrimSpace(h.Title) == "" {
			errs = multierr.Append(errs, fmt.Errorf("%w: 第 %d 首缺少标题", ErrMalformedDocument, i))
		}
		if len(h.Sections) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("%w: 第 %d 首没有任何段落", ErrMalformedDocument, i))
			continue
		}
		for j, s := range h.Sections {
			if len(s.Lines) == 0 {
				errs = multierr.Append(errs, fmt.Errorf("%w: 第 %d 首第 %d 段没有歌词行", ErrMalformedDocument, i, j))
			}
		}
	}
	return errs
}

// LineCount 返回一首歌的正文总行数，供重复竖线区间的范围检查使用。
func (h Hymn) LineCount() int {
	n := 0
	for _, s := range h.Sections {
		n += len(s.Lines)
	}
	return n
}
