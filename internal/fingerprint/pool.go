package fingerprint

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"

	"github.com/John-Robertt/mediasort/internal/domain"
)

// ResolveTimeFunc 由调用方注入时间解析逻辑，返回时间戳与来源名。
type ResolveTimeFunc func(ctx context.Context, f domain.MediaFile) (time.Time, string, error)

// Failure 是解析阶段的单文件失败（时间或指纹均可能）。
type Failure struct {
	File domain.MediaFile
	Err  error
}

// Pool 并发完成解析阶段：对每个扫描产物计算时间戳与内容指纹。
// goroutine 数量固定为 workers，重 I/O 不随文件数膨胀。
type Pool struct {
	workers     int
	threshold   int64
	needFP      bool
	resolveTime ResolveTimeFunc
}

// NewPool 构造解析池。workers 必须大于 0（上层负责 auto 换算与截断）；
// needFP 为 false 时跳过指纹计算（去重关闭且模式不需要存在性检查）。
func NewPool(workers int, threshold int64, needFP bool, rt ResolveTimeFunc) *Pool {
	return &Pool{workers: workers, threshold: threshold, needFP: needFP, resolveTime: rt}
}

// ResolveAll 并发解析整批文件。
//
// 结果与输入同序（按下标回填后压缩）；单文件失败只记入 failures，
// 不影响其余文件。ctx 取消后未开始的文件按取消失败计入。
func (p *Pool) ResolveAll(ctx context.Context, files []domain.MediaFile) ([]domain.ResolvedFile, []Failure) {
	if len(files) == 0 {
		return nil, nil
	}

	resolved := make([]*domain.ResolvedFile, len(files))
	errs := make([]error, len(files))

	pool, err := ants.NewPool(p.workers)
	if err != nil {
		// 池创建失败没有降级空间，逐个串行处理。
		log.Warn().Err(err).Msg("创建解析池失败，退化为串行处理")
		for i := range files {
			resolved[i], errs[i] = p.resolveOne(ctx, files[i])
		}
		return compact(files, resolved, errs)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range files {
		if ctx.Err() != nil {
			errs[i] = ctx.Err()
			continue
		}
		i := i
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			resolved[i], errs[i] = p.resolveOne(ctx, files[i])
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = submitErr
		}
	}
	wg.Wait()

	return compact(files, resolved, errs)
}

func (p *Pool) resolveOne(ctx context.Context, f domain.MediaFile) (*domain.ResolvedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t, provider, err := p.resolveTime(ctx, f)
	if err != nil {
		return nil, err
	}

	rf := &domain.ResolvedFile{MediaFile: f, Time: t, Provider: provider}
	if p.needFP {
		fp, err := Compute(f.AbsPath, f.Size, p.threshold)
		if err != nil {
			return nil, err
		}
		rf.FP = fp
		rf.HasFP = true
	}
	return rf, nil
}

func compact(files []domain.MediaFile, resolved []*domain.ResolvedFile, errs []error) ([]domain.ResolvedFile, []Failure) {
	out := make([]domain.ResolvedFile, 0, len(files))
	var failures []Failure
	for i := range files {
		switch {
		case errs[i] != nil:
			failures = append(failures, Failure{File: files[i], Err: errs[i]})
		case resolved[i] != nil:
			out = append(out, *resolved[i])
		}
	}
	return out, failures
}
