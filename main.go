package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ByLCY/hymnal/layout"
	"github.com/ByLCY/hymnal/renderer"
	canvasrenderer "github.com/ByLCY/hymnal/renderer/canvas"
	"github.com/ByLCY/hymnal/songbook"
)

func main() {
	input := flag.String("in", "examples/hymns.yaml", "歌本 YAML 文件路径")
	output := flag.String("out", "output/hymns.pdf", "PDF 输出路径")
	fontPath := flag.String("font", "", "TTF 字体文件路径")
	debug := flag.String("debug", "", "布局调试 JSON 输出路径")
	verbose := flag.Bool("v", false, "输出调试日志")
	flag.Parse()

	log := newLogger(*verbose).Sugar()
	defer log.Sync()

	if *fontPath == "" {
		log.Fatal("必须通过 -font 指定 TTF 字体文件")
	}

	r := canvasrenderer.NewRenderer(filepath.Dir(*input), *fontPath)
	if err := run(*input, *output, *debug, r, log); err != nil {
		log.Fatalf("生成 PDF 失败: %v", err)
	}
	log.Infof("已生成 PDF：%s", *output)
}

// newLogger 构造面向控制台的 zap 日志器，默认只输出 Info 及以上。
func newLogger(verbose bool) *zap.Logger {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeCaller = nil
	ec.TimeKey = zapcore.OmitKey
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(ec), zapcore.Lock(os.Stderr), level)
	return zap.New(core)
}

// run 串联装载、布局与渲染。
func run(inputPath, outputPath, debugPath string, r renderer.Renderer, log *zap.SugaredLogger) error {
	book, geomSpec, err := songbook.LoadFile(inputPath)
	if err != nil {
		return err
	}
	log.Debugf("已装载歌本：%d 首", len(book.Hymns))

	geom, err := layout.ResolveGeometry(geomSpec)
	if err != nil {
		return err
	}

	meas, ok := r.(layout.Measurer)
	if !ok {
		return fmt.Errorf("renderer 未实现度量接口")
	}

	result, err := layout.Build(book, geom, layout.BuildOptions{Measurer: meas})
	if err != nil {
		return err
	}
	log.Debugf("布局完成：%d 页，%d 条放置", result.PageCount, len(result.Placements))

	if debugPath != "" {
		if err := writeDebug(result, debugPath); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}

	pdfBytes, err := r.Render(result)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, pdfBytes, 0o644)
}

func writeDebug(result *layout.Result, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return err
	}
	return layout.WriteDebugJSON(result, debugPath)
}
