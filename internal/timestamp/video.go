package timestamp

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/mediasort/internal/domain"
)

// creationDateKeys 按优先级排列的视频元数据键。
var creationDateKeys = []string{
	"creation_time",
	"com.apple.quicktime.creationdate",
	"date",
	"date_recorded",
}

// videoLayouts 是视频元数据时间字符串的已知格式。
var videoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var (
	ffprobeOnce  sync.Once
	ffprobeFound bool
)

// 可替换的探测函数指针，测试用（避免依赖真实 ffprobe 与真实视频）。
var probeFunc = runFfprobe

// VideoProvider 通过外部 ffprobe 子进程提取视频创建时间。
//
// 约束：
// - 超时由调用方通过 CommandContext 强制，不依赖子进程自律
// - ffprobe 不存在、超时、非零退出均按弃权处理（单文件不致命）
type VideoProvider struct {
	Timeout time.Duration
}

func (VideoProvider) Name() string { return "video" }

func (p VideoProvider) Resolve(ctx context.Context, f domain.MediaFile) (time.Time, bool, error) {
	if f.Kind != domain.KindVideo {
		return time.Time{}, false, nil
	}

	ffprobeOnce.Do(func() {
		_, err := exec.LookPath("ffprobe")
		ffprobeFound = err == nil
	})
	if !ffprobeFound {
		return time.Time{}, false, nil
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := probeFunc(probeCtx, f.AbsPath)
	if err != nil {
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			return time.Time{}, false, &ProbeTimeoutError{Path: f.AbsPath, Timeout: timeout}
		}
		return time.Time{}, false, err
	}

	utc, ok := extractCreationTime(out)
	if !ok {
		return time.Time{}, false, nil
	}

	return correctTimezone(f.Base, utc), true, nil
}

// ProbeTimeoutError 表示 ffprobe 超过调用方限定的时间。
// 上层可把它映射为 error_kind=probe_timeout。
type ProbeTimeoutError struct {
	Path    string
	Timeout time.Duration
}

func (e *ProbeTimeoutError) Error() string {
	return "视频元数据探测超时（" + e.Timeout.String() + "）：" + e.Path
}

func IsProbeTimeout(err error) bool {
	var e *ProbeTimeoutError
	return errors.As(err, &e)
}

func runFfprobe(ctx context.Context, path string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	return cmd.Output()
}

type probeOutput struct {
	Format struct {
		Tags map[string]string `json:"tags"`
	} `json:"format"`
	Streams []struct {
		Tags map[string]string `json:"tags"`
	} `json:"streams"`
}

// extractCreationTime 先查 format tags，再查 stream tags；键大小写均尝试。
func extractCreationTime(out []byte) (time.Time, bool) {
	var po probeOutput
	if err := json.Unmarshal(out, &po); err != nil {
		return time.Time{}, false
	}

	if t, ok := lookupTags(po.Format.Tags); ok {
		return t, true
	}
	for _, s := range po.Streams {
		if t, ok := lookupTags(s.Tags); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func lookupTags(tags map[string]string) (time.Time, bool) {
	if len(tags) == 0 {
		return time.Time{}, false
	}
	for _, key := range creationDateKeys {
		for _, k := range []string{key, strings.ToUpper(key)} {
			if v, ok := tags[k]; ok {
				if t, ok := parseVideoDatetime(v); ok {
					return t, true
				}
			}
		}
	}
	return time.Time{}, false
}

// parseVideoDatetime 解析为 UTC 墙钟时间（无时区标注时按 UTC 处理）。
func parseVideoDatetime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range videoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// correctTimezone 把 UTC 元数据时间换算到本地墙钟。
//
// 策略（与产品契约一致）：
// 1) 文件名里能解析出本地时间戳时，用两者差值推算偏移（按 15 分钟取整，±14h 内有效）
// 2) 否则退回系统本地时区偏移
func correctTimezone(base string, utc time.Time) time.Time {
	if ft, ok := parseFilenameTime(base); ok {
		diff := ft.Sub(time.Date(utc.Year(), utc.Month(), utc.Day(),
			utc.Hour(), utc.Minute(), utc.Second(), 0, time.Local))
		if d := diff.Abs(); d <= 14*time.Hour {
			offset := (diff / (15 * time.Minute)) * (15 * time.Minute)
			if offset != 0 {
				return utc.Add(offset)
			}
			return utc
		}
	}

	_, localOffset := time.Now().Zone()
	return utc.Add(time.Duration(localOffset) * time.Second)
}
