package run

import (
	"time"

	"github.com/John-Robertt/mediasort/internal/config"
	"github.com/John-Robertt/mediasort/internal/domain"
)

// Observer 把“运行进度/阶段/单文件结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：OnFileDone 可能来自多个 goroutine 的汇聚循环。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.Effective)
	// OnPhaseDone 在状态机阶段结束时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(phase domain.Phase, fields map[string]any, dur time.Duration)
	// OnFileDone 在某个计划执行完成时调用（用于每条结果的一行输出）。
	OnFileDone(idx, total int, res domain.FileResult, dur time.Duration)
}
