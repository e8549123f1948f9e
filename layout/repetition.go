package layout

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/ByLCY/hymnal/songbook"
)

// barLevelDistance 是相邻层级重复竖线之间的水平间距（mm），
// 随歌的缩放系数一起缩放。
const barLevelDistance = 2.1

var (
	repetitionLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t]+`},
		{Name: "Int", Pattern: `\d+`},
		{Name: "Punct", Pattern: `[-,]`},
	})

	repetitionParser = participle.MustBuild[repetitionList](
		participle.Lexer(repetitionLexer),
		participle.Elide("Whitespace"),
	)
)

// repetitionList 是 "start-end,start-end" 形式的重复区间列表。
type repetitionList struct {
	Ranges []*repetitionRange `parser:"@@ ( ',' @@ )*"`
}

type repetitionRange struct {
	Start int `parser:"@Int"`
	End   int `parser:"'-' @Int"`
}

// repetitionBar 是解析并分层后的一个重复区间。
type repetitionBar struct {
	start int // 1 起始的正文行号
	end   int
	level int
}

// levelAllocator 为重叠的区间分配嵌套层级：同一行号上已有竖线时，
// 新区间排到更外一层。
type levelAllocator struct {
	allocation map[int]int
}

func newLevelAllocator() *levelAllocator {
	return &levelAllocator{allocation: map[int]int{}}
}

func (a *levelAllocator) allocate(start, end int) int {
	level := 0
	for i := start; i <= end; i++ {
		if l := a.allocation[i]; l > level {
			level = l
		}
	}
	level++
	for i := start; i <= end; i++ {
		a.allocation[i] = level
	}
	return level
}

// parseRepetitions 解析重复区间串并按出现顺序分配层级。
func parseRepetitions(s string) ([]repetitionBar, error) {
	parsed, err := repetitionParser.ParseString("", s)
	if err != nil {
		return nil, err
	}
	alloc := newLevelAllocator()
	bars := make([]repetitionBar, 0, len(parsed.Ranges))
	for _, r := range parsed.Ranges {
		if r.Start < 1 || r.End < r.Start {
			return nil, fmt.Errorf("区间 %d-%d 无效", r.Start, r.End)
		}
		bars = append(bars, repetitionBar{
			start: r.Start,
			end:   r.End,
			level: alloc.allocate(r.Start, r.End),
		})
	}
	return bars, nil
}

// resolveBars 把每首歌的重复区间落到最终放置结果上：
// 区间跨栏时按栏切成多段，每段覆盖该栏内相应行的纵向范围。
func resolveBars(book *songbook.Songbook, run *flowRun) ([]Bar, error) {
	var out []Bar
	for i, h := range book.Hymns {
		if h.Repetitions == "" {
			continue
		}
		bars, err := parseRepetitions(h.Repetitions)
		if err != nil {
			return nil, fmt.Errorf("%w: 第 %d 首的 repetitions %q 无法解析: %v", songbook.ErrMalformedDocument, i, h.Repetitions, err)
		}

		var body []Placement
		for _, p := range run.placements {
			if p.Hymn == i && p.Kind == KindLine {
				body = append(body, p)
			}
		}
		for _, b := range bars {
			if b.end > len(body) {
				return nil, fmt.Errorf("%w: 第 %d 首的重复区间 %d-%d 超出 %d 行正文", songbook.ErrMalformedDocument, i, b.start, b.end, len(body))
			}
			out = append(out, splitBar(b, body[b.start-1:b.end])...)
		}
	}
	return out, nil
}

// splitBar 将一个区间按 (页, 栏) 连续段拆成若干 Bar。
func splitBar(b repetitionBar, lines []Placement) []Bar {
	var segments []Bar
	for _, p := range lines {
		x := -float64(b.level) * barLevelDistance * p.Scale
		n := len(segments)
		if n > 0 && segments[n-1].Page == p.Page && segments[n-1].Column == p.Column {
			segments[n-1].YEnd = p.Offset + p.Height
			continue
		}
		segments = append(segments, Bar{
			Page:   p.Page,
			Column: p.Column,
			Level:  b.level,
			X:      x,
			YStart: p.Offset,
			YEnd:   p.Offset + p.Height,
		})
	}
	return segments
}
