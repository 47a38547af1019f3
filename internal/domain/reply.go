package domain

import "encoding/json"

// Reply 是一次命令调用交给展示端的唯一产物。
//
// 约束：Summary 与 Text 二选一，绝不同时出现（一次调用最多一条成功卡片或一条文本）。
type Reply struct {
	Summary   *MediaSummary `json:"summary,omitempty"`
	Text      string        `json:"text,omitempty"`
	Ephemeral bool          `json:"ephemeral,omitempty"` // 仅对发起者可见（错误提示）
}

// TextReply 构造纯文本回复。
func TextReply(text string, ephemeral bool) Reply {
	return Reply{Text: text, Ephemeral: ephemeral}
}

// SummaryReply 构造卡片回复。
func SummaryReply(s MediaSummary) Reply {
	return Reply{Summary: &s}
}

// IsText 报告这是否是一条文本回复。
func (r Reply) IsText() bool { return r.Summary == nil }

// MarshalJSON 集中约束输出：卡片回复不会带上残留的 Text。
func (r Reply) MarshalJSON() ([]byte, error) {
	type Alias Reply
	a := Alias(r)
	if a.Summary != nil {
		a.Text = ""
		a.Ephemeral = false
	}
	return json.Marshal(a)
}
