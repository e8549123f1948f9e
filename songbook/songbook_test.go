package songbook

import (
	"errors"
	"testing"

	"go.uber.org/multierr"
)

// TestNewCollectsAllViolations 验证构造歌本时一次性收集全部校验错误，
// 而不是在第一处失败就停下。
func TestNewCollectsAllViolations(t *testing.T) {
	_, err := New(BookMeta{}, []Hymn{
		{Title: "   ", Sections: []Section{{Lines: []Line{{Text: "a"}}}}},
		{Title: "B"},
		{Title: "C", Sections: []Section{{Lines: []Line{{Text: "a"}}}, {}}},
	})
	if err == nil {
		t.Fatal("期望校验失败")
	}
	if !errors.Is(err, ErrMalformedDocument) {
		t.Fatalf("错误应包装 ErrMalformedDocument: %v", err)
	}
	if got := len(multierr.Errors(err)); got != 3 {
		t.Fatalf("期望收集 3 个错误，实际 %d 个: %v", got, err)
	}
}

func TestNewEmptyBook(t *testing.T) {
	_, err := New(BookMeta{}, nil)
	if !errors.Is(err, ErrMalformedDocument) {
		t.Fatalf("空歌本应失败: %v", err)
	}
}

func TestNewValid(t *testing.T) {
	book, err := New(BookMeta{Name: "Hinário"}, []Hymn{
		{Title: "A", Sections: []Section{
			{Kind: Verse, Lines: []Line{{Text: "x"}, {Text: "y", Style: Chord}}},
			{Kind: Chorus, Lines: []Line{{Text: "z"}}},
		}},
	})
	if err != nil {
		t.Fatalf("合法歌本不应失败: %v", err)
	}
	if got := book.Hymns[0].LineCount(); got != 3 {
		t.Fatalf("LineCount = %d, 期望 3", got)
	}
}
