package layout

import (
	"fmt"

	"github.com/ByLCY/hymnal/songbook"
)

// tocIterationCap 是目录不动点迭代的次数上限。目录自身占页，
// 页码又依赖排版结果，因此需要迭代到页码稳定；超过上限视为病态几何。
const tocIterationCap = 5

// resolveToc 执行目录的不动点迭代：
//  1. 先按不预留目录空间排版一次；
//  2. 取每首歌标题的页索引生成候选目录；
//  3. 把目录作为先导伪段落重新排版；
//  4. 重复直到两次迭代之间页码不再变化。
//
// 收敛时返回的排版结果里，目录条目的页码与标题实际落页逐一相等。
func resolveToc(book *songbook.Songbook, geom PageGeometry, meas Measurer, hasCover bool, gap float64) (*flowRun, []TocEntry, error) {
	var entries []TocEntry
	for iter := 0; iter < tocIterationCap; iter++ {
		run, err := flowOnce(book, geom, meas, entries, hasCover, gap)
		if err != nil {
			return nil, nil, err
		}
		if entries != nil && entriesMatch(entries, run.titlePages) {
			return run, entries, nil
		}
		entries = candidateEntries(book, run.titlePages)
	}
	return nil, nil, fmt.Errorf("%w: 迭代 %d 次后页码仍在变化", ErrTocDidNotConverge, tocIterationCap)
}

func candidateEntries(book *songbook.Songbook, titlePages []int) []TocEntry {
	entries := make([]TocEntry, 0, len(titlePages))
	for i, page := range titlePages {
		entries = append(entries, TocEntry{
			Hymn:  i,
			Title: book.Hymns[i].Title,
			Page:  page,
		})
	}
	return entries
}

// entriesMatch 判断候选目录的页码是否与本次排版的标题落页完全一致。
func entriesMatch(entries []TocEntry, titlePages []int) bool {
	if len(entries) != len(titlePages) {
		return false
	}
	for _, e := range entries {
		if e.Hymn < 0 || e.Hymn >= len(titlePages) || titlePages[e.Hymn] != e.Page {
			return false
		}
	}
	return true
}
