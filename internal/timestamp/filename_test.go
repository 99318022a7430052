package timestamp

import (
	"testing"
	"time"
)

func TestParseFilenameTime_Patterns(t *testing.T) {
	cases := []struct {
		name string
		base string
		want time.Time
	}{
		{"紧凑格式", "20240115_143000", time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local)},
		{"紧凑格式连字符", "20240115-143000", time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local)},
		{"相机前缀", "IMG_20240115_143000", time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local)},
		{"相机前缀无分隔", "IMG20240115143000", time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local)},
		{"DJI", "DJI_20230601_090102", time.Date(2023, 6, 1, 9, 1, 2, 0, time.Local)},
		{"截图", "Screenshot_2024-01-15-14-30-00", time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local)},
		{"中文截图", "截图_20240115_143000", time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local)},
		{"分隔格式", "2024-01-15 14-30-00", time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local)},
		{"WhatsApp", "IMG-20240115-WA0001", time.Date(2024, 1, 15, 0, 0, 0, 0, time.Local)},
		{"Unix 秒", "1705329000", time.Unix(1705329000, 0)},
		{"Unix 毫秒", "1705329000123", time.Unix(1705329000, 0)},
		{"仅日期", "photo_20240115", time.Date(2024, 1, 15, 0, 0, 0, 0, time.Local)},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := parseFilenameTime(c.base)
			if !ok {
				t.Fatalf("%q 应能解析", c.base)
			}
			if !got.Equal(c.want) {
				t.Fatalf("%q 解析结果不符：got=%v want=%v", c.base, got, c.want)
			}
		})
	}
}

func TestParseFilenameTime_Rejects(t *testing.T) {
	cases := []struct {
		name string
		base string
	}{
		{"无数字", "holiday_photo"},
		{"年份越界", "18990101_120000"},
		{"非法月份", "20241315_120000"},
		{"非法日归一化", "20240231"},
		{"Unix 越界", "0000001234"},
		{"短数字串", "IMG_1234"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got, ok := parseFilenameTime(c.base); ok {
				t.Fatalf("%q 不应解析，实际得到 %v", c.base, got)
			}
		})
	}
}

func TestParseFilenameTime_InvalidTimeFallsBackToDateOnly(t *testing.T) {
	// 时间部分非法时不整体放弃，仅日期模式仍可兜底。
	got, ok := parseFilenameTime("20240115_256090")
	if !ok {
		t.Fatalf("应回退到仅日期模式")
	}
	want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Fatalf("回退结果不符：got=%v want=%v", got, want)
	}
}

func TestParseFilenameTime_CompactBeatsDateOnly(t *testing.T) {
	// 同名里既有完整时间戳也有独立日期串时，完整时间戳优先。
	got, ok := parseFilenameTime("backup_20230101_of_20240115_143000")
	if !ok {
		t.Fatalf("应能解析")
	}
	want := time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Fatalf("优先级不符：got=%v want=%v", got, want)
	}
}
