package main

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/mediasort/internal/config"
	"github.com/John-Robertt/mediasort/internal/domain"
)

// logObserver 把运行进度写到 stderr 日志（stdout 留给报告 JSON）。
// zerolog 本身并发安全，无需额外加锁。
type logObserver struct {
	log zerolog.Logger
}

func (o *logObserver) OnStart(eff config.Effective) {
	o.log.Info().
		Str("mode", string(eff.Mode)).
		Strs("inputs", eff.InputDirs).
		Str("output", eff.OutputDir).
		Str("operation", string(eff.Operation)).
		Bool("dry_run", eff.DryRun).
		Msg("开始运行")
}

func (o *logObserver) OnPhaseDone(phase domain.Phase, fields map[string]any, dur time.Duration) {
	ev := o.log.Info().Str("phase", string(phase)).Dur("dur", dur)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg("阶段完成")
}

func (o *logObserver) OnFileDone(idx, total int, res domain.FileResult, dur time.Duration) {
	ev := o.log.Info()
	if res.Status == domain.StatusFailed {
		ev = o.log.Error().Str("error_kind", res.ErrorKind).Str("error_msg", res.ErrorMsg)
	}
	ev.Int("idx", idx).Int("total", total).
		Str("src", res.Src).Str("dst", res.Dst).
		Str("status", res.Status).Dur("dur", dur).
		Msg("文件完成")
}
