// Package planner 把（时间戳 + 分类规则 + 去重决策）映射为确定性的执行计划。
// 只读文件系统现状，不做任何写入。
package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/John-Robertt/mediasort/internal/config"
	"github.com/John-Robertt/mediasort/internal/domain"
	"github.com/John-Robertt/mediasort/internal/fingerprint"
)

// maxSuffix 是冲突改名的后缀上限（stem_1 .. stem_9999）。
const maxSuffix = 9999

// Planner 为单次运行生成计划。
//
// claimed 是批内已分配的目标绝对路径：同批两个不同内容的文件落到
// 同名目标时，后者必须在计划阶段就拿到改名，不能等执行时撞车。
type Planner struct {
	Cfg     config.Effective
	claimed map[string]struct{}
}

func New(cfg config.Effective) *Planner {
	return &Planner{Cfg: cfg, claimed: map[string]struct{}{}}
}

// Plan 为一个规范文件生成计划。
//
// 返回 (nil, true, nil) 表示目标侧已有相同内容（already-present），无需执行；
// 返回错误表示该文件无法规划（单文件失败，不影响批次）。
func (p *Planner) Plan(f domain.ResolvedFile) (*domain.OperationPlan, bool, error) {
	dir := p.destDir(f)
	name := f.Base + f.Ext
	dstAbs := filepath.Join(dir, name)

	suffixed := false
	if p.Cfg.Mode != config.ModeFull {
		final, present, err := p.resolveCollision(dstAbs, f)
		if err != nil {
			return nil, false, err
		}
		if present {
			return nil, true, nil
		}
		suffixed = final != dstAbs
		dstAbs = final
	}

	p.claimed[dstAbs] = struct{}{}

	rel, err := filepath.Rel(p.Cfg.OutputDir, dstAbs)
	if err != nil {
		return nil, false, err
	}

	return &domain.OperationPlan{
		SrcAbs:   f.AbsPath,
		DstAbs:   dstAbs,
		DstRel:   rel,
		Action:   p.Cfg.Operation,
		Time:     f.Time,
		Provider: f.Provider,
		FP:       f.FP,
		HasFP:    f.HasFP,
		Suffixed: suffixed,
	}, false, nil
}

// destDir 推导目标目录：时间分类在前，类型子目录在后。
func (p *Planner) destDir(f domain.ResolvedFile) string {
	dir := p.Cfg.OutputDir

	switch p.Cfg.Classification {
	case config.ClassifyYear:
		dir = filepath.Join(dir, fmt.Sprintf("%04d", f.Time.Year()))
	case config.ClassifyYearMonth:
		if p.Cfg.MonthFormat == config.MonthCombined {
			dir = filepath.Join(dir, fmt.Sprintf("%04d-%02d", f.Time.Year(), int(f.Time.Month())))
		} else {
			dir = filepath.Join(dir, fmt.Sprintf("%04d", f.Time.Year()), fmt.Sprintf("%02d", int(f.Time.Month())))
		}
	}

	if p.Cfg.ClassifyByType {
		for _, seg := range f.Kind.TypeFolder() {
			dir = filepath.Join(dir, seg)
		}
	}
	return dir
}

// resolveCollision 处理非 full 模式下的目标名占用。
//
// 语义：
// - 目标名空闲（磁盘与批内都没占用）→ 原名
// - 占用者内容与源相同 → already-present，不生成计划
// - 占用者内容不同 → stem_N.ext 依次探测，直到找到空闲名
func (p *Planner) resolveCollision(dstAbs string, f domain.ResolvedFile) (string, bool, error) {
	occupied, same, err := p.probe(dstAbs, f)
	if err != nil {
		return "", false, err
	}
	if !occupied {
		return dstAbs, false, nil
	}
	if same {
		return "", true, nil
	}

	dir := filepath.Dir(dstAbs)
	for n := 1; n <= maxSuffix; n++ {
		cand := filepath.Join(dir, fmt.Sprintf("%s_%d%s", f.Base, n, f.Ext))
		occupied, same, err := p.probe(cand, f)
		if err != nil {
			return "", false, err
		}
		if same {
			return "", true, nil
		}
		if !occupied {
			return cand, false, nil
		}
	}
	return "", false, fmt.Errorf("目标名冲突无法消解（已试到 %s_%d%s）：%s", f.Base, maxSuffix, f.Ext, dstAbs)
}

// probe 返回候选名是否被占用，以及占用者内容是否与源相同。
func (p *Planner) probe(cand string, f domain.ResolvedFile) (occupied, same bool, err error) {
	if _, ok := p.claimed[cand]; ok {
		// 批内认领的目标尚未落盘，内容比较无从谈起，一律按不同内容处理。
		return true, false, nil
	}

	fi, err := os.Stat(cand)
	if err != nil {
		if os.IsNotExist(err) {
			return false, false, nil
		}
		return false, false, err
	}
	if fi.IsDir() {
		return true, false, nil
	}

	// 无指纹时无法断言内容相同，只能保守改名。
	if !f.HasFP {
		return true, false, nil
	}
	if fi.Size() != f.Size {
		return true, false, nil
	}

	fp, err := fingerprint.Compute(cand, fi.Size(), p.Cfg.LargeFileThreshold)
	if err != nil {
		return false, false, err
	}
	return true, fp == f.FP, nil
}

// SortPlans 按源路径稳定排序，让上层不依赖生成顺序。
func SortPlans(plans []domain.OperationPlan) {
	sort.Slice(plans, func(i, j int) bool { return plans[i].SrcAbs < plans[j].SrcAbs })
}
