package songbook

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// GeometrySpec 是 YAML 中的页面几何配置，长度保留原始单位字符串
// （mm/cm/in/pt），由 layout.ResolveGeometry 解析为数值。
type GeometrySpec struct {
	PageWidth      string `yaml:"page_width"`
	PageHeight     string `yaml:"page_height"`
	ColumnsPerPage int    `yaml:"columns_per_page"`
	ColumnGutter   string `yaml:"column_gutter"`
	MarginTop      string `yaml:"margin_top"`
	MarginBottom   string `yaml:"margin_bottom"`
	MarginLeft     string `yaml:"margin_left"`
	MarginRight    string `yaml:"margin_right"`
}

type yamlSection struct {
	Type  string   `yaml:"type"`
	Lines []string `yaml:"lines"`
}

type yamlHymn struct {
	Number            int           `yaml:"number"`
	Title             string        `yaml:"title"`
	Style             string        `yaml:"style"`
	OfferedTo         string        `yaml:"offered_to"`
	ExtraInstructions string        `yaml:"extra_instructions"`
	ReceivedAt        string        `yaml:"received_at"`
	Repetitions       string        `yaml:"repetitions"`
	Sections          []yamlSection `yaml:"sections"`
	// Text 是 sections 的替代写法：空行分段的整首歌词。
	Text string `yaml:"text"`
}

type yamlBook struct {
	IntroName      string        `yaml:"intro_name"`
	Name           string        `yaml:"name"`
	Owner          string        `yaml:"owner"`
	CoverImagePath string        `yaml:"cover_image_path"`
	TocTitle       string        `yaml:"toc_title"`
	Geometry       *GeometrySpec `yaml:"geometry"`
	Hymns          []yamlHymn    `yaml:"hymns"`
}

type yamlDocument struct {
	HymnBook *yamlBook     `yaml:"hymn_book"`
	Geometry *GeometrySpec `yaml:"geometry"`
	Hymns    []yamlHymn    `yaml:"hymns"`
}

// Load 从 YAML 输入构造歌本。支持带 hymn_book 外层的完整写法，
// 也接受只有 hymns 列表的精简写法。结构不符合约定时返回
// 包装了 ErrMalformedDocument 的错误。
func Load(r io.Reader) (*Songbook, GeometrySpec, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc yamlDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, GeometrySpec{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	var (
		meta BookMeta
		raw  []yamlHymn
		geom GeometrySpec
	)
	switch {
	case doc.HymnBook != nil:
		meta = BookMeta{
			IntroName:      doc.HymnBook.IntroName,
			Name:           doc.HymnBook.Name,
			Owner:          doc.HymnBook.Owner,
			CoverImagePath: doc.HymnBook.CoverImagePath,
			TocTitle:       doc.HymnBook.TocTitle,
		}
		raw = doc.HymnBook.Hymns
		if doc.HymnBook.Geometry != nil {
			geom = *doc.HymnBook.Geometry
		}
	default:
		raw = doc.Hymns
		if doc.Geometry != nil {
			geom = *doc.Geometry
		}
	}

	hymns := make([]Hymn, 0, len(raw))
	for i, rh := range raw {
		h, err := convertHymn(i, rh)
		if err != nil {
			return nil, GeometrySpec{}, err
		}
		hymns = append(hymns, h)
	}

	book, err := New(meta, hymns)
	if err != nil {
		return nil, GeometrySpec{}, err
	}
	return book, geom, nil
}

// LoadFile 打开并加载歌本文件，封面图片路径按 YAML 所在目录解析。
func LoadFile(path string) (*Songbook, GeometrySpec, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, GeometrySpec{}, fmt.Errorf("无法打开歌本文件 %s: %w", path, err)
	}
	defer file.Close()

	book, geom, err := Load(file)
	if err != nil {
		return nil, GeometrySpec{}, err
	}
	if book.Meta.CoverImagePath != "" && !filepath.IsAbs(book.Meta.CoverImagePath) {
		book.Meta.CoverImagePath = filepath.Join(filepath.Dir(path), book.Meta.CoverImagePath)
	}
	return book, geom, nil
}

func convertHymn(idx int, rh yamlHymn) (Hymn, error) {
	h := Hymn{
		Number:            rh.Number,
		Title:             rh.Title,
		Style:             rh.Style,
		OfferedTo:         rh.OfferedTo,
		ExtraInstructions: rh.ExtraInstructions,
		ReceivedAt:        rh.ReceivedAt,
		Repetitions:       rh.Repetitions,
	}
	if len(rh.Sections) > 0 && strings.TrimSpace(rh.Text) != "" {
		return Hymn{}, fmt.Errorf("%w: 第 %d 首同时给出了 sections 与 text", ErrMalformedDocument, idx)
	}
	if len(rh.Sections) > 0 {
		for j, rs := range rh.Sections {
			kind, err := parseSectionKind(rs.Type)
			if err != nil {
				return Hymn{}, fmt.Errorf("%w: 第 %d 首第 %d 段: %v", ErrMalformedDocument, idx, j, err)
			}
			h.Sections = append(h.Sections, Section{Kind: kind, Lines: convertLines(rs.Lines)})
		}
		return h, nil
	}
	// text 写法：空行分段，每段视为主歌。
	for _, para := range strings.Split(strings.TrimSpace(rh.Text), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		h.Sections = append(h.Sections, Section{
			Kind:  Verse,
			Lines: convertLines(strings.Split(para, "\n")),
		})
	}
	return h, nil
}

func parseSectionKind(v string) (SectionKind, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "verse":
		return Verse, nil
	case "chorus":
		return Chorus, nil
	default:
		return Verse, fmt.Errorf("未知的段落类型 %q", v)
	}
}

// convertLines 将原始歌词行转为 Line。以 "." 开头的行视为和弦行，
// 前缀本身不进入文本。
func convertLines(raw []string) []Line {
	lines := make([]Line, 0, len(raw))
	for _, text := range raw {
		if rest, ok := strings.CutPrefix(text, "."); ok {
			lines = append(lines, Line{Text: rest, Style: Chord})
			continue
		}
		lines = append(lines, Line{Text: text, Style: Lyric})
	}
	return lines
}
