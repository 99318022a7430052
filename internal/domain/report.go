package domain

import (
	"sort"
	"time"
)

const (
	// StatusProcessed 表示文件已成功放置（dry-run 下为 planned）。
	StatusProcessed = "processed"
	// StatusPlanned 表示 dry-run 生成了计划但未执行。
	StatusPlanned = "planned"
	// StatusDuplicate 表示源内重复（非 canonical 成员），未放置。
	StatusDuplicate = "duplicate"
	// StatusAlreadyPresent 表示目标侧已有同内容（或被水位线过滤），跳过。
	StatusAlreadyPresent = "already_present"
	// StatusFailed 表示单文件处理失败（不影响同批其他文件）。
	StatusFailed = "failed"
)

const (
	ErrKindIOFailed     = "io_failed"
	ErrKindPermission   = "permission_denied"
	ErrKindCrossDevice  = "cross_device"
	ErrKindProbeTimeout = "probe_timeout"
	ErrKindConflict     = "target_conflict"
	ErrKindCancelled    = "cancelled"
)

// Phase 是 run 状态机对外上报的阶段（初始 idle 不上报）。
type Phase string

const (
	PhaseScanning  Phase = "scanning"
	PhaseFiltering Phase = "filtering"
	PhasePlanning  Phase = "planning"
	PhaseExecuting Phase = "executing"
	PhaseReporting Phase = "reporting"
	PhaseDone      Phase = "done"
	PhaseFailed    Phase = "failed"
)

// RunReport 是对外稳定输出（stdout JSON）的结构。
type RunReport struct {
	Mode   string `json:"mode"`
	DryRun bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Files   []FileResult  `json:"files"`
}

type ReportSummary struct {
	Processed      int `json:"processed"`
	Duplicates     int `json:"duplicates"`
	AlreadyPresent int `json:"already_present"`
	Errors         int `json:"errors"`
	Total          int `json:"total"`
}

// FileResult 是单文件的最终结论（成功或带类型的失败，从不抛出）。
type FileResult struct {
	Src      string `json:"src"`
	Dst      string `json:"dst,omitempty"`
	Status   string `json:"status"`
	Provider string `json:"provider,omitempty"`

	ErrorKind string `json:"error_kind,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) files 稳定排序：按 src 字典序
// 3) summary 由 files 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Files, func(i, j int) bool { return r.Files[i].Src < r.Files[j].Src })

	var s ReportSummary
	for _, f := range r.Files {
		switch f.Status {
		case StatusProcessed, StatusPlanned:
			s.Processed++
		case StatusDuplicate:
			s.Duplicates++
		case StatusAlreadyPresent:
			s.AlreadyPresent++
		case StatusFailed:
			s.Errors++
		}
	}
	s.Total = len(r.Files)
	r.Summary = s
}
