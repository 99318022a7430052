package timestamp

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/John-Robertt/mediasort/internal/domain"
)

// exifDateTags 按优先级排列的 EXIF 日期标签。
var exifDateTags = []exif.FieldName{
	exif.DateTimeOriginal,  // 拍摄时间
	exif.DateTimeDigitized, // 数字化时间
	exif.DateTime,          // 文件修改时间
}

// exifLayouts 是 EXIF 日期字符串的已知格式（标准格式优先）。
var exifLayouts = []string{
	"2006:01:02 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
}

// ExifProvider 从图片（含 RAW）的嵌入元数据提取拍摄时间。
type ExifProvider struct{}

func (ExifProvider) Name() string { return "exif" }

// Resolve 只处理 image/raw 类别；解析不到有效日期标签即弃权。
func (ExifProvider) Resolve(_ context.Context, f domain.MediaFile) (time.Time, bool, error) {
	if f.Kind != domain.KindImage && f.Kind != domain.KindRaw {
		return time.Time{}, false, nil
	}

	fh, err := os.Open(f.AbsPath)
	if err != nil {
		return time.Time{}, false, err
	}
	defer fh.Close()

	x, err := exif.Decode(fh)
	if err != nil {
		// 无 EXIF 段不是错误，弃权交给下一来源。
		return time.Time{}, false, nil
	}

	for _, tag := range exifDateTags {
		field, err := x.Get(tag)
		if err != nil {
			continue
		}
		s, err := field.StringVal()
		if err != nil {
			continue
		}
		if t, ok := parseExifDatetime(s); ok {
			return t, true, nil
		}
	}
	return time.Time{}, false, nil
}

func parseExifDatetime(s string) (time.Time, bool) {
	s = strings.Trim(strings.TrimSpace(s), "\"")
	// 去掉亚秒部分（"2024:01:15 14:30:00.123" 形态）。
	if i := strings.IndexByte(s, '.'); i > 0 {
		s = s[:i]
	}
	for _, layout := range exifLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
