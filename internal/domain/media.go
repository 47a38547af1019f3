package domain

// RGB 是从封面图量化得到的代表色（派生值，不是权威数据）。
type RGB struct {
	R, G, B uint8
}

// Int 返回 0xRRGGBB 形式的整数（展示端通常以整数接收颜色）。
func (c RGB) Int() int {
	return int(c.R)<<16 | int(c.G)<<8 | int(c.B)
}

// Field 是摘要卡片上的一条附加信息。
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// MediaSummary 是与来源无关的展示对象（assemble 的输出）。
//
// 约束：
// - 空字符串表示字段缺失；Color 为 nil 表示没有代表色
// - 不允许出现来源记录里不存在的字段
// - Color 只能来自对 Thumbnail 的一次成功提取；Thumbnail 为空时 Color 必须为 nil
type MediaSummary struct {
	Title       string  `json:"title,omitempty"`
	URL         string  `json:"url,omitempty"`
	Thumbnail   string  `json:"thumbnail,omitempty"`
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"fields"`
	Color       *RGB    `json:"color,omitempty"`
	Footer      string  `json:"footer,omitempty"`
}

// MovieDetails 是详情接口返回的扩展字段。
// Budget/Revenue 为 0 表示“未知”，但照样渲染为 $0。
type MovieDetails struct {
	Budget  int64
	Revenue int64
	Runtime *int   // 分钟
	IMDbID  string // 例如 tt0073195
}

// MovieRecord 是元数据源（TMDB）搜索命中的首条结果。
// Details 为 nil 表示详情阶段没有成功。
type MovieRecord struct {
	ID          int64
	Title       string
	ReleaseDate string // "2006-01-02"，可为空
	Overview    string
	PosterPath  string // 可为空
	Details     *MovieDetails
}

// BookRecord 是从详情页抓取的图书信息。每个字段都独立可选。
type BookRecord struct {
	Title       string
	Author      string
	Rating      *float64 // 0.0 - 5.0
	Thumbnail   string
	Description string
	Pages       string
	Published   string // 原文，不解析
	URL         string
}
