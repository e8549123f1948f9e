package layout

import (
	"errors"
	"strings"
	"testing"

	"github.com/ByLCY/hymnal/songbook"
)

// TestTocConvergence：目录自身占页并把所有歌向后推一页，
// 迭代后目录页码与标题实际落页逐一相等。
func TestTocConvergence(t *testing.T) {
	book := makeBook(t, hymnOf("Alpha", 8), hymnOf("Beta", 8), hymnOf("Gamma", 8))
	res := mustBuild(t, book, testGeometry(1), stubMeasurer(nil))

	titlePage := map[int]int{}
	for _, p := range res.Placements {
		if p.Kind == KindTitle {
			titlePage[p.Hymn] = p.Page
		}
	}
	for _, e := range res.Toc {
		if titlePage[e.Hymn] != e.Page {
			t.Fatalf("目录页码 %d 与标题落页 %d 不符: %+v", e.Page, titlePage[e.Hymn], e)
		}
	}
	// 不预留目录时三首歌在 0/1/2 页；目录占掉第 0 页的前 4 行后整体后移
	if res.Toc[0].Page != 1 || res.Toc[2].Page != 3 {
		t.Fatalf("目录页码不符: %+v", res.Toc)
	}
}

// TestTocHeadingDefault：未配置目录标题时使用默认标题。
func TestTocHeadingDefault(t *testing.T) {
	book := makeBook(t, hymnOf("Alpha", 2))
	res := mustBuild(t, book, testGeometry(1), stubMeasurer(nil))

	found := false
	for _, p := range res.Placements {
		if p.Kind == KindTocHeading {
			found = true
			if p.Text != "Índice" {
				t.Fatalf("目录标题 = %q, 期望 Índice", p.Text)
			}
		}
	}
	if !found {
		t.Fatal("缺少目录标题放置")
	}
}

// TestTocDidNotConverge：构造一个病态度量器——目录条目指向第 1 页时
// 高到把歌挤去下一页，指向第 2 页时又缩回去，使页码永远振荡。
func TestTocDidNotConverge(t *testing.T) {
	meas := MeasureFunc(func(text string, style TextStyle) (float64, float64, error) {
		switch style {
		case StyleTocHeading:
			return 1, 0, nil
		case StyleTocEntry:
			if strings.HasSuffix(text, "\t1") {
				return 1, 9, nil
			}
			return 1, 1, nil
		default:
			return 1, 1, nil
		}
	})
	book := makeBook(t, hymnOf("Oscilante", 1))
	_, err := Build(book, testGeometry(1), BuildOptions{Measurer: meas})
	if !errors.Is(err, ErrTocDidNotConverge) {
		t.Fatalf("期望 ErrTocDidNotConverge, 实际 %v", err)
	}
}

// TestTocCustomHeading：配置了目录标题时按配置输出。
func TestTocCustomHeading(t *testing.T) {
	book, err := songbook.New(
		songbook.BookMeta{TocTitle: "Sumário"},
		[]songbook.Hymn{hymnOf("Alpha", 2)},
	)
	if err != nil {
		t.Fatal(err)
	}
	res := mustBuild(t, book, testGeometry(1), stubMeasurer(nil))
	for _, p := range res.Placements {
		if p.Kind == KindTocHeading && p.Text != "Sumário" {
			t.Fatalf("目录标题 = %q", p.Text)
		}
	}
}
