package layout

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestWriteDebugJSON 验证调试输出可以被重新解析，且枚举字段输出可读名称。
func TestWriteDebugJSON(t *testing.T) {
	book := makeBook(t, hymnOf("Alpha", 2))
	res := mustBuild(t, book, testGeometry(1), stubMeasurer(nil))

	path := filepath.Join(t.TempDir(), "layout.json")
	if err := WriteDebugJSON(res, path); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("输出不是合法 JSON: %v", err)
	}
	text := string(data)
	for _, want := range []string{`"kind": "title"`, `"style": "lyric"`, `"pageCount"`} {
		if !strings.Contains(text, want) {
			t.Fatalf("调试 JSON 缺少 %s", want)
		}
	}
}

func TestWriteDebugJSONNilResult(t *testing.T) {
	if err := WriteDebugJSON(nil, filepath.Join(t.TempDir(), "x.json")); err != nil {
		t.Fatalf("nil 结果应被忽略: %v", err)
	}
}
