package layout

import (
	"errors"
	"math"
	"testing"

	"github.com/ByLCY/hymnal/songbook"
)

// TestParseRepetitionsLevels：重叠区间按出现顺序分到更外层。
func TestParseRepetitionsLevels(t *testing.T) {
	bars, err := parseRepetitions("1-2,3-4,1-4,2-3,3-5")
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	want := []int{1, 1, 2, 3, 4}
	if len(bars) != len(want) {
		t.Fatalf("区间数 = %d, 期望 %d", len(bars), len(want))
	}
	for i, b := range bars {
		if b.level != want[i] {
			t.Fatalf("区间 %d-%d 层级 = %d, 期望 %d", b.start, b.end, b.level, want[i])
		}
	}
}

func TestParseRepetitionsSingleLine(t *testing.T) {
	bars, err := parseRepetitions("3-3")
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(bars) != 1 || bars[0].start != 3 || bars[0].end != 3 || bars[0].level != 1 {
		t.Fatalf("结果不符: %+v", bars)
	}
}

func TestParseRepetitionsInvalid(t *testing.T) {
	for _, input := range []string{"2-1", "0-3", "abc", "1-", "1-2,,3-4"} {
		if _, err := parseRepetitions(input); err == nil {
			t.Fatalf("%q 应解析失败", input)
		}
	}
}

// TestBarsFromBuild：重复区间落到放置结果上，纵向范围覆盖对应行，
// 外层竖线画得更靠外。
func TestBarsFromBuild(t *testing.T) {
	h := hymnOf("Com repetição", 4)
	h.Repetitions = "1-2,1-4"
	book := makeBook(t, h)
	res := mustBuild(t, book, testGeometry(1), stubMeasurer(zeroToc))

	if len(res.Bars) != 2 {
		t.Fatalf("竖线数 = %d, 期望 2", len(res.Bars))
	}
	// 标题占 1mm，正文从偏移 1 开始
	inner, outer := res.Bars[0], res.Bars[1]
	if inner.Level != 1 || inner.YStart != 1 || inner.YEnd != 3 {
		t.Fatalf("内层竖线不符: %+v", inner)
	}
	if outer.Level != 2 || outer.YStart != 1 || outer.YEnd != 5 {
		t.Fatalf("外层竖线不符: %+v", outer)
	}
	if math.Abs(inner.X-(-barLevelDistance)) > eps {
		t.Fatalf("内层 X = %g", inner.X)
	}
	if math.Abs(outer.X-(-2*barLevelDistance)) > eps {
		t.Fatalf("外层 X = %g, 期望更靠外", outer.X)
	}
}

// TestBarSplitAcrossColumns：区间跨栏时竖线按 (页, 栏) 切成多段。
func TestBarSplitAcrossColumns(t *testing.T) {
	h := hymnOf("Longa", 15)
	h.Repetitions = "1-15"
	book := makeBook(t, h)
	meas := stubMeasurer(map[TextStyle]float64{
		StyleTocHeading: 0, StyleTocEntry: 0, StyleTitle: 0,
	})
	res := mustBuild(t, book, testGeometry(1), meas)

	if len(res.Bars) != 2 {
		t.Fatalf("竖线段数 = %d, 期望 2: %+v", len(res.Bars), res.Bars)
	}
	first, second := res.Bars[0], res.Bars[1]
	if first.Page != 0 || first.YStart != 0 || first.YEnd != 10 {
		t.Fatalf("第一段不符: %+v", first)
	}
	if second.Page != 1 || second.YStart != 0 || second.YEnd != 5 {
		t.Fatalf("第二段不符: %+v", second)
	}
}

// TestBarRangeBeyondBody：区间超出正文行数按结构错误处理。
func TestBarRangeBeyondBody(t *testing.T) {
	h := hymnOf("Curta", 4)
	h.Repetitions = "1-9"
	book := makeBook(t, h)
	_, err := Build(book, testGeometry(1), BuildOptions{Measurer: stubMeasurer(zeroToc)})
	if !errors.Is(err, songbook.ErrMalformedDocument) {
		t.Fatalf("期望 ErrMalformedDocument, 实际 %v", err)
	}
}

// TestBarScaleFollowsShrink：缩小后的歌，竖线间距也按比例缩小。
func TestBarScaleFollowsShrink(t *testing.T) {
	meas := MeasureFunc(func(text string, style TextStyle) (float64, float64, error) {
		switch style {
		case StyleTocHeading, StyleTocEntry:
			return 1, 0, nil
		case StyleLyric:
			return 180, 1, nil
		default:
			return 1, 1, nil
		}
	})
	h := hymnOf("Larga", 2)
	h.Repetitions = "1-2"
	book := makeBook(t, h)
	res := mustBuild(t, book, testGeometry(1), meas)

	if len(res.Bars) != 1 {
		t.Fatalf("竖线数 = %d", len(res.Bars))
	}
	if math.Abs(res.Bars[0].X-(-barLevelDistance*0.5)) > eps {
		t.Fatalf("竖线 X = %g, 应随 0.5 缩放", res.Bars[0].X)
	}
}
