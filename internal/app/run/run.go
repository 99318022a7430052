// Package run 驱动一次完整运行的状态机：
//
//	idle → scanning → filtering → planning → executing → reporting → done
//
// 任一阶段的致命错误（输出根不可用、扫描失败）直接终止并产出 failed 报告；
// 单文件错误只降级为该文件的 failed 结果，绝不拖垮批次。
package run

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/John-Robertt/mediasort/internal/app/planner"
	"github.com/John-Robertt/mediasort/internal/config"
	"github.com/John-Robertt/mediasort/internal/dedup"
	"github.com/John-Robertt/mediasort/internal/domain"
	"github.com/John-Robertt/mediasort/internal/fingerprint"
	"github.com/John-Robertt/mediasort/internal/infra/fsx"
	"github.com/John-Robertt/mediasort/internal/scan"
	"github.com/John-Robertt/mediasort/internal/state"
	"github.com/John-Robertt/mediasort/internal/timestamp"
)

// Execute 执行一次 run（dry-run/apply），返回对外稳定的 RunReport。
func Execute(ctx context.Context, eff config.Effective) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 输出进度/阶段信息。
func ExecuteWithObserver(ctx context.Context, eff config.Effective, obs Observer) domain.RunReport {
	started := time.Now().UTC()
	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Mode:      string(eff.Mode),
		DryRun:    eff.DryRun,
		StartedAt: started,
		Files:     make([]domain.FileResult, 0, 128),
	}

	fatal := func(kind, msg string) domain.RunReport {
		rr.Files = append(rr.Files, domain.FileResult{Status: domain.StatusFailed, ErrorKind: kind, ErrorMsg: msg})
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		if obs != nil {
			obs.OnPhaseDone(domain.PhaseFailed, map[string]any{"error": msg}, time.Since(started))
		}
		return rr
	}

	// 致命前置：输出根必须可用。dry-run 不创建目录，但文件占位同样致命。
	if eff.DryRun {
		if fi, err := os.Stat(eff.OutputDir); err == nil && !fi.IsDir() {
			return fatal(domain.ErrKindConflict, fmt.Sprintf("输出根被文件占用：%s", eff.OutputDir))
		}
	} else if err := fsx.EnsureDir(eff.OutputDir); err != nil {
		return fatal(classifyKind(err), fmt.Sprintf("输出根不可用：%v", err))
	}

	store := state.New(eff.StateFile, eff.OutputDir, eff.DryRun)
	workers := effectiveWorkers(eff.Workers)

	// scanning：枚举源文件 + 并发解析时间戳/指纹。
	scanStarted := time.Now()
	files, err := scan.New(eff).Scan()
	if err != nil {
		return fatal(domain.ErrKindIOFailed, fmt.Sprintf("扫描失败：%v", err))
	}

	needFP := eff.Deduplicate || eff.Mode != config.ModeFull
	resolver := timestamp.NewResolver(eff)
	pool := fingerprint.NewPool(workers, eff.LargeFileThreshold, needFP,
		func(ctx context.Context, f domain.MediaFile) (time.Time, string, error) {
			res, err := resolver.Resolve(ctx, f)
			return res.Time, res.Provider, err
		})
	resolved, resolveFailures := pool.ResolveAll(ctx, files)
	for _, fl := range resolveFailures {
		rr.Files = append(rr.Files, failedResult(fl.File.RelPath, "", fl.Err))
	}

	if obs != nil {
		obs.OnPhaseDone(domain.PhaseScanning, map[string]any{
			"files":    len(files),
			"resolved": len(resolved),
			"failed":   len(resolveFailures),
			"workers":  workers,
		}, time.Since(scanStarted))
	}

	// filtering：源内去重 + 模式过滤（水位线、目标侧存在性）。
	filterStarted := time.Now()

	groups := dedup.Group(resolved, eff.Deduplicate)
	canon := make([]domain.ResolvedFile, 0, len(groups))
	dupCount := 0
	for _, g := range groups {
		for _, di := range dedup.Duplicates(g) {
			d := resolved[di]
			rr.Files = append(rr.Files, domain.FileResult{
				Src: d.RelPath, Status: domain.StatusDuplicate, Provider: d.Provider,
			})
			dupCount++
		}
		canon = append(canon, resolved[g.CanonIdx])
	}

	var wm *state.Watermark
	if eff.Mode == config.ModeIncremental {
		if w, ok := store.LoadWatermark(); ok {
			if w.ValidFor(string(eff.Classification), string(eff.MonthFormat)) {
				wm = w
			} else {
				log.Warn().Str("classification", w.Classification).Str("month_format", w.MonthFormat).
					Msg("分类设置已变更，忽略旧水位线")
			}
		}
	}

	ps := store.LoadState()
	if eff.Mode != config.ModeFull && ps.Len() == 0 {
		// 状态缺失/损坏时回退：现场扫描目标树的指纹做存在性检查。
		// 扫描结果必须并入 state 随本次 run 落盘：下次 run 看到非空
		// 状态文件就不再重扫，目标侧既有内容全靠这份记录识别。
		live := scanDestFingerprints(eff)
		if len(live) > 0 {
			log.Warn().Int("files", len(live)).
				Msg("状态文件不可用，已回退为现场扫描目标目录指纹")
			for fp, rel := range live {
				ps.Record(fp, rel)
			}
		}
	}

	surviving := make([]domain.ResolvedFile, 0, len(canon))
	skipped := 0
	for _, f := range canon {
		if wm != nil && !wm.IsNewer(f.Time) {
			rr.Files = append(rr.Files, domain.FileResult{
				Src: f.RelPath, Status: domain.StatusAlreadyPresent, Provider: f.Provider,
			})
			skipped++
			continue
		}
		if eff.Mode != config.ModeFull && f.HasFP {
			if rel, ok := ps.Has(f.FP); ok {
				rr.Files = append(rr.Files, domain.FileResult{
					Src: f.RelPath, Dst: rel, Status: domain.StatusAlreadyPresent, Provider: f.Provider,
				})
				skipped++
				continue
			}
		}
		surviving = append(surviving, f)
	}

	if obs != nil {
		obs.OnPhaseDone(domain.PhaseFiltering, map[string]any{
			"candidates":      len(canon),
			"duplicates":      dupCount,
			"already_present": skipped,
			"surviving":       len(surviving),
		}, time.Since(filterStarted))
	}

	// planning：每个幸存文件一条计划。
	planStarted := time.Now()
	pl := planner.New(eff)
	plans := make([]domain.OperationPlan, 0, len(surviving))
	srcRel := make(map[string]string, len(surviving))
	for _, f := range surviving {
		plan, present, err := pl.Plan(f)
		if err != nil {
			rr.Files = append(rr.Files, failedResult(f.RelPath, "", err))
			continue
		}
		if present {
			rr.Files = append(rr.Files, domain.FileResult{
				Src: f.RelPath, Status: domain.StatusAlreadyPresent, Provider: f.Provider,
			})
			continue
		}
		srcRel[plan.SrcAbs] = f.RelPath
		plans = append(plans, *plan)
	}
	planner.SortPlans(plans)

	if obs != nil {
		obs.OnPhaseDone(domain.PhasePlanning, map[string]any{"plans": len(plans)}, time.Since(planStarted))
	}

	// dry-run 在 planning 与 executing 的边界短路：只报告，不落盘。
	if eff.DryRun {
		for _, p := range plans {
			rr.Files = append(rr.Files, domain.FileResult{
				Src: srcRel[p.SrcAbs], Dst: p.DstRel, Status: domain.StatusPlanned, Provider: p.Provider,
			})
		}
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		if obs != nil {
			obs.OnPhaseDone(domain.PhaseDone, map[string]any{"planned": len(plans)}, time.Since(started))
		}
		return rr
	}

	// executing：固定 worker 池并发执行计划，单条失败互不影响。
	execStarted := time.Now()
	ex := executor{overwrite: eff.Mode == config.ModeFull, srcRel: srcRel}

	type execResult struct {
		plan domain.OperationPlan
		res  domain.FileResult
		ok   bool
		dur  time.Duration
	}

	jobs := make(chan domain.OperationPlan)
	results := make(chan execResult, len(plans))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				oneStarted := time.Now()
				res, ok := ex.execOne(p)
				results <- execResult{plan: p, res: res, ok: ok, dur: time.Since(oneStarted)}
			}
		}()
	}

	// 取消语义：停止派发，在途计划自然完成（原子写保证不留半截文件）。
	dispatched := 0
	for _, p := range plans {
		if ctx.Err() != nil {
			break
		}
		jobs <- p
		dispatched++
	}
	close(jobs)
	wg.Wait()
	close(results)

	for _, p := range plans[dispatched:] {
		rr.Files = append(rr.Files, domain.FileResult{
			Src: srcRel[p.SrcAbs], Dst: p.DstRel, Status: domain.StatusFailed,
			Provider: p.Provider, ErrorKind: domain.ErrKindCancelled, ErrorMsg: "运行被取消，计划未执行",
		})
	}

	done := 0
	processed := 0
	var maxTime time.Time
	var newestRel string
	for r := range results {
		done++
		rr.Files = append(rr.Files, r.res)
		if obs != nil {
			obs.OnFileDone(done, dispatched, r.res, r.dur)
		}
		if !r.ok {
			continue
		}
		processed++
		if r.plan.HasFP {
			ps.Record(r.plan.FP, r.plan.DstRel)
		}
		if r.plan.Time.After(maxTime) {
			maxTime = r.plan.Time
			newestRel = r.plan.DstRel
		}
	}

	if obs != nil {
		obs.OnPhaseDone(domain.PhaseExecuting, map[string]any{
			"processed": processed,
			"failed":    dispatched - processed,
			"cancelled": len(plans) - dispatched,
		}, time.Since(execStarted))
	}

	// reporting：状态与水位线在汇聚后一次性落盘（原子替换）。
	reportStarted := time.Now()
	if processed > 0 {
		if err := store.SaveState(ps); err != nil {
			log.Warn().Err(err).Str("path", store.StatePath).Msg("状态文件写入失败（不影响本次结果）")
		}
		if err := store.SaveWatermark(&state.Watermark{
			NewestTimestamp: maxTime,
			NewestRelPath:   newestRel,
			Classification:  string(eff.Classification),
			MonthFormat:     string(eff.MonthFormat),
			FilesProcessed:  processed,
		}); err != nil {
			log.Warn().Err(err).Msg("水位线写入失败（不影响本次结果）")
		}
	}
	if obs != nil {
		obs.OnPhaseDone(domain.PhaseReporting, map[string]any{
			"state_saved": processed > 0,
		}, time.Since(reportStarted))
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	if obs != nil {
		obs.OnPhaseDone(domain.PhaseDone, map[string]any{
			"processed": rr.Summary.Processed,
			"errors":    rr.Summary.Errors,
		}, time.Since(started))
	}
	return rr
}

// effectiveWorkers 把配置值换算为实际 goroutine 数（0 = 按 CPU 核数）。
func effectiveWorkers(w int) int {
	if w <= 0 {
		w = runtime.GOMAXPROCS(0)
	}
	if w < 1 {
		w = 1
	}
	if w > 64 {
		w = 64
	}
	return w
}

// executor 执行单条计划。overwrite 只在 full 模式为真：
// 其余模式 planner 已保证目标名不会覆盖不同内容。
type executor struct {
	overwrite bool
	srcRel    map[string]string
}

func (e executor) execOne(p domain.OperationPlan) (domain.FileResult, bool) {
	res := domain.FileResult{
		Src: e.srcRel[p.SrcAbs], Dst: p.DstRel,
		Status: domain.StatusProcessed, Provider: p.Provider,
	}

	if err := e.perform(p); err != nil {
		res.Status = domain.StatusFailed
		res.ErrorKind = classifyKind(err)
		res.ErrorMsg = err.Error()
		return res, false
	}
	return res, true
}

func (e executor) perform(p domain.OperationPlan) error {
	dir := filepath.Dir(p.DstAbs)
	name := filepath.Base(p.DstAbs)

	switch p.Action {
	case domain.ActionCopy:
		if err := fsx.CopyAtomic(p.SrcAbs, dir, name); err != nil {
			return err
		}
		// mtime 保留是尽力而为：Chtimes 失败不值得让整条计划失败。
		_ = fsx.PreserveMtime(p.SrcAbs, p.DstAbs)
		return nil

	case domain.ActionMove:
		if err := fsx.EnsureDir(dir); err != nil {
			return err
		}
		err := fsx.Rename(p.SrcAbs, p.DstAbs)
		if err == nil {
			return nil
		}
		if !fsx.IsCrossDevice(err) {
			return err
		}
		// 跨盘移动退化为拷贝 + 删除源。
		if err := fsx.CopyAtomic(p.SrcAbs, dir, name); err != nil {
			return err
		}
		_ = fsx.PreserveMtime(p.SrcAbs, p.DstAbs)
		return os.Remove(p.SrcAbs)

	case domain.ActionHardlink:
		if err := fsx.EnsureDir(dir); err != nil {
			return err
		}
		if err := e.clearForOverwrite(p.DstAbs); err != nil {
			return err
		}
		// 跨盘 hardlink 无法退化，按单条计划失败处理。
		return fsx.Link(p.SrcAbs, p.DstAbs)

	case domain.ActionSymlink:
		if err := fsx.EnsureDir(dir); err != nil {
			return err
		}
		if err := e.clearForOverwrite(p.DstAbs); err != nil {
			return err
		}
		return fsx.Symlink(p.SrcAbs, p.DstAbs)

	default:
		return fmt.Errorf("未知操作类型：%q", p.Action)
	}
}

// clearForOverwrite 在 full 模式下为 link/symlink 腾出目标名
// （copy/move 经由 rename 天然覆盖，不需要这一步）。
func (e executor) clearForOverwrite(dst string) error {
	if !e.overwrite {
		return nil
	}
	if _, err := os.Lstat(dst); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.Remove(dst)
}

// scanDestFingerprints 现场扫描目标树，建立指纹 → 相对路径索引。
// 任何单文件错误直接跳过：这是状态缺失时的降级路径，宁缺毋错。
func scanDestFingerprints(eff config.Effective) map[domain.Fingerprint]string {
	out := map[domain.Fingerprint]string{}
	root := eff.OutputDir

	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if _, ok := eff.KindOf(filepath.Ext(d.Name())); !ok {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		fp, err := fingerprint.Compute(p, fi.Size(), eff.LargeFileThreshold)
		if err != nil {
			return nil
		}
		if rel, e := filepath.Rel(root, p); e == nil {
			out[fp] = rel
		}
		return nil
	})
	return out
}

func failedResult(src, dst string, err error) domain.FileResult {
	return domain.FileResult{
		Src: src, Dst: dst, Status: domain.StatusFailed,
		ErrorKind: classifyKind(err), ErrorMsg: err.Error(),
	}
}

// classifyKind 把底层错误归入报告的 error_kind 分类。
func classifyKind(err error) string {
	switch {
	case err == nil:
		return ""
	case timestamp.IsProbeTimeout(err):
		return domain.ErrKindProbeTimeout
	case fsx.IsCrossDevice(err):
		return domain.ErrKindCrossDevice
	case fsx.IsPathTypeConflict(err):
		return domain.ErrKindConflict
	case errors.Is(err, os.ErrPermission):
		return domain.ErrKindPermission
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return domain.ErrKindCancelled
	default:
		return domain.ErrKindIOFailed
	}
}
