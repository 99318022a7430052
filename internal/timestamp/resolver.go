// Package timestamp 实现多来源创建时间解析的回退链。
//
// 链内每个 provider 要么给出确定时间戳，要么弃权（abstain），绝不“半成功”。
// provider 的 I/O 错误记日志后按弃权处理；只要文件可 stat，解析必定产出结果。
package timestamp

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/John-Robertt/mediasort/internal/config"
	"github.com/John-Robertt/mediasort/internal/domain"
)

// Provider 是单个时间来源。
//
// Resolve 返回 (t, true, nil) 表示成功；(_, false, nil) 表示弃权；
// 错误会被 Resolver 记日志并按弃权处理，绝不中断链。
type Provider interface {
	Name() string
	Resolve(ctx context.Context, f domain.MediaFile) (time.Time, bool, error)
}

// Result 是解析结果，Provider 字段记录成功来源（诊断/测试用）。
type Result struct {
	Time     time.Time
	Provider string
}

// Resolver 按固定优先级依次尝试 providers。
type Resolver struct {
	providers []Provider
}

// NewResolver 构造默认链：exif → video → filename → mtime。
// 新 provider 以实现 Provider 并插入链的方式加入，不改动编排逻辑。
func NewResolver(cfg config.Effective) Resolver {
	return Resolver{providers: []Provider{
		ExifProvider{},
		VideoProvider{Timeout: time.Duration(cfg.ProbeTimeoutSec) * time.Second},
		FilenameProvider{},
		MtimeProvider{},
	}}
}

// NewResolverWith 用自定义链构造（测试注入用）。
func NewResolverWith(providers ...Provider) Resolver {
	return Resolver{providers: providers}
}

// Resolve 逐个尝试 provider，返回第一个成功结果。
// 全部弃权只可能发生在自定义链上；默认链的 mtime 对可 stat 文件永不弃权。
func (r Resolver) Resolve(ctx context.Context, f domain.MediaFile) (Result, error) {
	for _, p := range r.providers {
		t, ok, err := p.Resolve(ctx, f)
		if err != nil {
			// 单 provider 出错按弃权处理，继续下一个来源。
			log.Debug().Err(err).Str("provider", p.Name()).Str("path", f.AbsPath).
				Msg("时间来源出错，按弃权处理")
			continue
		}
		if !ok {
			continue
		}
		return Result{Time: t, Provider: p.Name()}, nil
	}
	return Result{}, fmt.Errorf("所有时间来源均弃权：%s", f.AbsPath)
}

// MtimeProvider 使用扫描阶段记录的文件系统修改时间，永不弃权。
type MtimeProvider struct{}

func (MtimeProvider) Name() string { return "mtime" }

func (MtimeProvider) Resolve(_ context.Context, f domain.MediaFile) (time.Time, bool, error) {
	return time.Unix(f.ModUnix, 0), true, nil
}
