package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/mediasort/internal/domain"
)

func TestLoadEffective_Defaults(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{
		InputDirs: []string{"in"},
		OutputDir: "out",
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	if eff.Mode != ModeIncremental {
		t.Fatalf("默认 mode 应为 incremental，实际 %q", eff.Mode)
	}
	if eff.Classification != ClassifyNone {
		t.Fatalf("默认 classification 应为 none，实际 %q", eff.Classification)
	}
	if eff.MonthFormat != MonthNested {
		t.Fatalf("默认 month_format 应为 nested，实际 %q", eff.MonthFormat)
	}
	if eff.Operation != domain.ActionCopy {
		t.Fatalf("默认 operation 应为 copy，实际 %q", eff.Operation)
	}
	if !eff.Deduplicate {
		t.Fatalf("默认 deduplicate 应为 true")
	}
	if eff.Workers != 0 {
		t.Fatalf("默认 workers 应为 0（自动），实际 %d", eff.Workers)
	}
	if eff.LargeFileThreshold != DefaultLargeFileThreshold {
		t.Fatalf("默认阈值应为 100MiB，实际 %d", eff.LargeFileThreshold)
	}
	if eff.StateFile != filepath.Join(eff.OutputDir, ".mediasort_state.json") {
		t.Fatalf("默认 state_file 位置不符：%q", eff.StateFile)
	}
	if !filepath.IsAbs(eff.OutputDir) || !filepath.IsAbs(eff.InputDirs[0]) {
		t.Fatalf("路径必须为绝对路径：%q %q", eff.OutputDir, eff.InputDirs[0])
	}
}

func TestLoadEffective_FileAndCLIOverride(t *testing.T) {
	cwd := t.TempDir()
	cfgPath := filepath.Join(cwd, "mediasort.toml")
	content := `
input_dirs = ["photos", "camera"]
output_dir = "library"
mode = "supplement"
classification = "year-month"
month_format = "combined"
classify_by_type = true
operation = "move"
deduplicate = false
workers = 8
large_file_threshold = 1048576
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("写配置失败：%v", err)
	}

	eff, err := LoadEffective(cwd, CLIArgs{
		ConfigPath: cfgPath,
		// CLI 显式覆盖 mode；其余沿用配置文件。
		Mode:    "full",
		ModeSet: true,
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	if eff.Mode != ModeFull {
		t.Fatalf("CLI 应覆盖配置文件：%q", eff.Mode)
	}
	if eff.Classification != ClassifyYearMonth || eff.MonthFormat != MonthCombined {
		t.Fatalf("分类配置未生效：%q %q", eff.Classification, eff.MonthFormat)
	}
	if !eff.ClassifyByType {
		t.Fatalf("classify_by_type 未生效")
	}
	if eff.Operation != domain.ActionMove {
		t.Fatalf("operation 未生效：%q", eff.Operation)
	}
	if eff.Deduplicate {
		t.Fatalf("deduplicate=false 未生效")
	}
	if eff.Workers != 8 {
		t.Fatalf("workers 未生效：%d", eff.Workers)
	}
	if eff.LargeFileThreshold != 1048576 {
		t.Fatalf("large_file_threshold 未生效：%d", eff.LargeFileThreshold)
	}
	if len(eff.InputDirs) != 2 {
		t.Fatalf("input_dirs 数量不符：%v", eff.InputDirs)
	}
}

func TestLoadEffective_InvalidValues(t *testing.T) {
	cwd := t.TempDir()
	base := CLIArgs{InputDirs: []string{"in"}, OutputDir: "out"}

	cases := []struct {
		name string
		mut  func(*CLIArgs)
	}{
		{"非法 mode", func(c *CLIArgs) { c.Mode = "bogus"; c.ModeSet = true }},
		{"非法 classification", func(c *CLIArgs) { c.Classification = "week"; c.ClassificationSet = true }},
		{"非法 month_format", func(c *CLIArgs) { c.MonthFormat = "flat"; c.MonthFormatSet = true }},
		{"非法 operation", func(c *CLIArgs) { c.Operation = "teleport"; c.OperationSet = true }},
		{"非正阈值", func(c *CLIArgs) { c.Threshold = 0; c.ThresholdSet = true }},
		{"缺少 output", func(c *CLIArgs) { c.OutputDir = "" }},
		{"缺少 input", func(c *CLIArgs) { c.InputDirs = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cli := base
			tc.mut(&cli)
			_, err := LoadEffective(cwd, cli)
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 config_invalid，实际：%v", err)
			}
		})
	}
}

func TestLoadEffective_ConfigFileNotFound(t *testing.T) {
	cwd := t.TempDir()
	_, err := LoadEffective(cwd, CLIArgs{
		ConfigPath: filepath.Join(cwd, "missing.toml"),
		InputDirs:  []string{"in"},
		OutputDir:  "out",
	})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 config_not_found，实际：%v", err)
	}
}

func TestKindOf(t *testing.T) {
	cwd := t.TempDir()
	eff, err := LoadEffective(cwd, CLIArgs{InputDirs: []string{"in"}, OutputDir: "out"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	cases := []struct {
		ext  string
		kind domain.Kind
		ok   bool
	}{
		{".jpg", domain.KindImage, true},
		{"JPEG", domain.KindImage, true},
		{".mp4", domain.KindVideo, true},
		{".ARW", domain.KindRaw, true},
		{".txt", "", false},
	}
	for _, c := range cases {
		kind, ok := eff.KindOf(c.ext)
		if ok != c.ok || kind != c.kind {
			t.Fatalf("KindOf(%q) = (%q, %v)，期望 (%q, %v)", c.ext, kind, ok, c.kind, c.ok)
		}
	}
}
