package domain

import "time"

// Action 是计划执行的文件操作类型。
type Action string

const (
	ActionCopy     Action = "copy"
	ActionMove     Action = "move"
	ActionHardlink Action = "hardlink"
	ActionSymlink  Action = "symlink"
)

// ParseAction 校验并解析操作类型字符串。
func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionCopy, ActionMove, ActionHardlink, ActionSymlink:
		return Action(s), true
	default:
		return "", false
	}
}

// OperationPlan 规划一次文件放置（只描述 src/dst/action；不做任何写入）。
// 由执行器恰好消费一次。
type OperationPlan struct {
	SrcAbs string
	DstAbs string
	DstRel string // 相对 output root，写入 state 用
	Action Action

	Time     time.Time // 解析出的创建时间（水位线归约用）
	Provider string

	FP    Fingerprint
	HasFP bool

	// Suffixed 表示目标名为避免不同内容冲突追加了数字后缀。
	Suffixed bool
}
