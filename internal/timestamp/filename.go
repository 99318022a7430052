package timestamp

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/John-Robertt/mediasort/internal/domain"
)

// 已知的文件名时间模式，按命中率排序依次尝试。
var (
	// YYYYMMDD_HHmmss / YYYYMMDD-HHmmss
	patternCompact = regexp.MustCompile(`(\d{4})(\d{2})(\d{2})[_-](\d{2})(\d{2})(\d{2})`)

	// IMG_YYYYMMDD_HHmmss 等相机命名前缀
	patternCamera = regexp.MustCompile(`(?:IMG|VID|DSC|DCIM|MOV|MVI|DJI|GOPR|GP)[-_]?(\d{4})(\d{2})(\d{2})[-_]?(\d{2})(\d{2})(\d{2})`)

	// 各平台截图命名（含中文）
	patternScreenshot = regexp.MustCompile(`(?:Screenshot|Screen Shot|Capture|截图|截屏)[-_\s]*(\d{4})[-_]?(\d{2})[-_]?(\d{2})[-_\s]*(?:at[-_\s]*)?(\d{1,2})[-_.]?(\d{2})[-_.]?(\d{2})`)

	// YYYY-MM-DD_HH-mm-ss 等带分隔符形态
	patternSeparated = regexp.MustCompile(`(\d{4})[-_](\d{2})[-_](\d{2})[-_\s](\d{2})[-_](\d{2})[-_](\d{2})`)

	// WhatsApp：IMG-YYYYMMDD-WAxxxx（只有日期）
	patternWhatsApp = regexp.MustCompile(`(?:IMG|VID)[-_](\d{4})(\d{2})(\d{2})[-_]WA`)

	// Unix 时间戳（秒 10 位 / 毫秒 13 位）
	patternUnix = regexp.MustCompile(`(\d{13}|\d{10})`)

	// 仅日期 YYYYMMDD（兜底）
	patternDateOnly = regexp.MustCompile(`(\d{4})(\d{2})(\d{2})`)
)

// FilenameProvider 从文件名的已知命名约定解析时间戳。
type FilenameProvider struct{}

func (FilenameProvider) Name() string { return "filename" }

func (FilenameProvider) Resolve(_ context.Context, f domain.MediaFile) (time.Time, bool, error) {
	if t, ok := parseFilenameTime(f.Base); ok {
		return t, true, nil
	}
	return time.Time{}, false, nil
}

// parseFilenameTime 依次尝试各模式；name 不含扩展名。
func parseFilenameTime(name string) (time.Time, bool) {
	if m := patternCompact.FindStringSubmatch(name); m != nil {
		if t, ok := buildDatetime(m[1], m[2], m[3], m[4], m[5], m[6]); ok {
			return t, true
		}
	}
	if m := patternCamera.FindStringSubmatch(name); m != nil {
		if t, ok := buildDatetime(m[1], m[2], m[3], m[4], m[5], m[6]); ok {
			return t, true
		}
	}
	if m := patternScreenshot.FindStringSubmatch(name); m != nil {
		if t, ok := buildDatetime(m[1], m[2], m[3], m[4], m[5], m[6]); ok {
			return t, true
		}
	}
	if m := patternSeparated.FindStringSubmatch(name); m != nil {
		if t, ok := buildDatetime(m[1], m[2], m[3], m[4], m[5], m[6]); ok {
			return t, true
		}
	}
	if m := patternWhatsApp.FindStringSubmatch(name); m != nil {
		if t, ok := buildDatetime(m[1], m[2], m[3], "0", "0", "0"); ok {
			return t, true
		}
	}
	if m := patternUnix.FindStringSubmatch(name); m != nil {
		if t, ok := buildUnix(m[1]); ok {
			return t, true
		}
	}
	if m := patternDateOnly.FindStringSubmatch(name); m != nil {
		if t, ok := buildDatetime(m[1], m[2], m[3], "0", "0", "0"); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func buildDatetime(year, month, day, hour, minute, second string) (time.Time, bool) {
	y, _ := strconv.Atoi(year)
	mo, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	h, _ := strconv.Atoi(hour)
	mi, _ := strconv.Atoi(minute)
	s, _ := strconv.Atoi(second)

	// 合理性校验：年份范围兜住误匹配的随机数字串。
	if y < 1990 || y > 2100 {
		return time.Time{}, false
	}
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	if h > 23 || mi > 59 || s > 59 {
		return time.Time{}, false
	}

	t := time.Date(y, time.Month(mo), d, h, mi, s, 0, time.Local)
	// time.Date 会把 2 月 31 日之类静默归一化；回读校验拒绝这类输入。
	if t.Day() != d || int(t.Month()) != mo {
		return time.Time{}, false
	}
	return t, true
}

func buildUnix(s string) (time.Time, bool) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	if len(s) == 13 {
		v /= 1000
	}
	// 合理区间：1990-01-01 .. 2100-01-01。
	if v < 631152000 || v > 4102444800 {
		return time.Time{}, false
	}
	return time.Unix(v, 0), true
}
