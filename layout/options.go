package layout

// BuildOptions 配置布局阶段所需的依赖，例如度量后端。
type BuildOptions struct {
	Measurer Measurer
	// SectionGap 是段落之间的垂直间距（mm）。零值表示段落紧排，
	// 度量结果中的行高已含行距时通常只需要很小的值。
	SectionGap float64
}
