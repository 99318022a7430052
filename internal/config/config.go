package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/John-Robertt/mediasort/internal/domain"
)

const (
	// ErrCodeNotFound 表示显式指定了配置文件但文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

// Mode 是处理模式。
type Mode string

const (
	// ModeFull：不过滤源文件；目标冲突无条件覆盖。
	ModeFull Mode = "full"
	// ModeSupplement：按指纹查目标侧是否已存在，存在则跳过。
	ModeSupplement Mode = "supplement"
	// ModeIncremental：先按水位线过滤时间戳，再做 supplement 的存在性检查（默认）。
	ModeIncremental Mode = "incremental"
)

// Classification 是时间分类规则。
type Classification string

const (
	ClassifyNone      Classification = "none"
	ClassifyYear      Classification = "year"
	ClassifyYearMonth Classification = "year-month"
)

// MonthFormat 是 year-month 分类下的月份格式。
type MonthFormat string

const (
	MonthNested   MonthFormat = "nested"   // YYYY/MM/
	MonthCombined MonthFormat = "combined" // YYYY-MM/
)

// DefaultLargeFileThreshold 是采样哈希的默认阈值（100 MiB）。
const DefaultLargeFileThreshold = 100 * 1024 * 1024

// DefaultProbeTimeoutSec 是外部视频探测子进程的默认超时（秒）。
const DefaultProbeTimeoutSec = 15

// FileConfig 对应 mediasort.toml 的解析结构。
// 指针字段用于区分“未设置”与“显式设置为零值”。
type FileConfig struct {
	InputDirs   []string `toml:"input_dirs"`
	OutputDir   string   `toml:"output_dir"`
	ExcludeDirs []string `toml:"exclude_dirs"`

	Mode           string `toml:"mode"`
	Classification string `toml:"classification"`
	MonthFormat    string `toml:"month_format"`
	ClassifyByType *bool  `toml:"classify_by_type"`

	Operation   string `toml:"operation"`
	Deduplicate *bool  `toml:"deduplicate"`

	StateFile          string `toml:"state_file"`
	Workers            *int   `toml:"workers"`
	LargeFileThreshold *int64 `toml:"large_file_threshold"`
	ProbeTimeoutSec    *int   `toml:"probe_timeout_sec"`

	ImageExtensions []string `toml:"image_extensions"`
	VideoExtensions []string `toml:"video_extensions"`
	RawExtensions   []string `toml:"raw_extensions"`
}

// CLIArgs 包含 CLI 暴露的入口项，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --dry-run=false 必须能覆盖 config 值。
type CLIArgs struct {
	ConfigPath string

	InputDirs []string
	OutputDir string

	Mode              string
	ModeSet           bool
	Classification    string
	ClassificationSet bool
	MonthFormat       string
	MonthFormatSet    bool
	ClassifyByType    bool
	ClassifyByTypeSet bool

	Operation      string
	OperationSet   bool
	Deduplicate    bool
	DeduplicateSet bool

	StateFile    string
	Workers      int
	WorkersSet   bool
	Threshold    int64
	ThresholdSet bool

	DryRun    bool
	DryRunSet bool
}

// Effective 是合并并做最小规范化后的最终配置
// （核心流程直接消费，不再做二次默认/优先级判断）。
type Effective struct {
	InputDirs   []string // clean + absolute
	OutputDir   string   // clean + absolute
	ExcludeDirs []string

	Mode           Mode
	Classification Classification
	MonthFormat    MonthFormat
	ClassifyByType bool

	Operation   domain.Action
	Deduplicate bool

	StateFile          string // clean + absolute
	Workers            int    // 0 = auto
	LargeFileThreshold int64
	ProbeTimeoutSec    int

	DryRun bool

	imageExts map[string]struct{}
	videoExts map[string]struct{}
	rawExts   map[string]struct{}
}

// Error 是配置阶段的结构化错误（带 error code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置无效：%v", e.Code, e.Err)
		}
		return fmt.Sprintf("%s：配置无效", e.Code)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取可选的 TOML 配置文件并与 CLI 参数合并为最终配置。
//
// 覆盖优先级（固定）：CLI 显式指定 > 配置文件 > 内置默认。
// 任何校验失败都是致命错误：在触碰任何文件之前返回，不写任何状态。
func LoadEffective(cwd string, cli CLIArgs) (Effective, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return Effective{}, &Error{Code: ErrCodeInvalid, Err: err}
	}

	var fc FileConfig
	if p := strings.TrimSpace(cli.ConfigPath); p != "" {
		cfgPath := absCleanFrom(cwdAbs, p)
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			if os.IsNotExist(err) {
				return Effective{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: err}
			}
			return Effective{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if err := toml.Unmarshal(b, &fc); err != nil {
			return Effective{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	}

	return merge(cwdAbs, cli, fc)
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig) (Effective, error) {
	eff := Effective{}

	// input_dirs：CLI > config；至少一个。
	inputs := cli.InputDirs
	if len(inputs) == 0 {
		inputs = fc.InputDirs
	}
	if len(inputs) == 0 {
		return Effective{}, &Error{Code: ErrCodeInvalid, Err: fmt.Errorf("input_dirs 不能为空")}
	}
	for _, in := range inputs {
		if strings.TrimSpace(in) == "" {
			continue
		}
		eff.InputDirs = append(eff.InputDirs, absCleanFrom(cwdAbs, in))
	}

	// output_dir：CLI > config；必填。
	out := strings.TrimSpace(cli.OutputDir)
	if out == "" {
		out = strings.TrimSpace(fc.OutputDir)
	}
	if out == "" {
		return Effective{}, &Error{Code: ErrCodeInvalid, Err: fmt.Errorf("output_dir 不能为空")}
	}
	eff.OutputDir = absCleanFrom(cwdAbs, out)

	eff.ExcludeDirs = append([]string(nil), fc.ExcludeDirs...)

	// mode：CLI > config > 默认 incremental。
	mode := string(ModeIncremental)
	if cli.ModeSet {
		mode = cli.Mode
	} else if strings.TrimSpace(fc.Mode) != "" {
		mode = fc.Mode
	}
	switch Mode(mode) {
	case ModeFull, ModeSupplement, ModeIncremental:
		eff.Mode = Mode(mode)
	default:
		return Effective{}, &Error{Code: ErrCodeInvalid, Err: fmt.Errorf("mode 只能是 full/supplement/incremental，实际是 %q", mode)}
	}

	// classification：CLI > config > 默认 none。
	cls := string(ClassifyNone)
	if cli.ClassificationSet {
		cls = cli.Classification
	} else if strings.TrimSpace(fc.Classification) != "" {
		cls = fc.Classification
	}
	switch Classification(cls) {
	case ClassifyNone, ClassifyYear, ClassifyYearMonth:
		eff.Classification = Classification(cls)
	default:
		return Effective{}, &Error{Code: ErrCodeInvalid, Err: fmt.Errorf("classification 只能是 none/year/year-month，实际是 %q", cls)}
	}

	// month_format：CLI > config > 默认 nested。
	mf := string(MonthNested)
	if cli.MonthFormatSet {
		mf = cli.MonthFormat
	} else if strings.TrimSpace(fc.MonthFormat) != "" {
		mf = fc.MonthFormat
	}
	switch MonthFormat(mf) {
	case MonthNested, MonthCombined:
		eff.MonthFormat = MonthFormat(mf)
	default:
		return Effective{}, &Error{Code: ErrCodeInvalid, Err: fmt.Errorf("month_format 只能是 nested/combined，实际是 %q", mf)}
	}

	if cli.ClassifyByTypeSet {
		eff.ClassifyByType = cli.ClassifyByType
	} else if fc.ClassifyByType != nil {
		eff.ClassifyByType = *fc.ClassifyByType
	}

	// operation：CLI > config > 默认 copy。
	op := string(domain.ActionCopy)
	if cli.OperationSet {
		op = cli.Operation
	} else if strings.TrimSpace(fc.Operation) != "" {
		op = fc.Operation
	}
	action, ok := domain.ParseAction(op)
	if !ok {
		return Effective{}, &Error{Code: ErrCodeInvalid, Err: fmt.Errorf("operation 只能是 copy/move/hardlink/symlink，实际是 %q", op)}
	}
	eff.Operation = action

	// deduplicate：CLI > config > 默认 true。
	eff.Deduplicate = true
	if cli.DeduplicateSet {
		eff.Deduplicate = cli.Deduplicate
	} else if fc.Deduplicate != nil {
		eff.Deduplicate = *fc.Deduplicate
	}

	// state_file：CLI > config > 默认 <output>/.mediasort_state.json。
	sf := strings.TrimSpace(cli.StateFile)
	if sf == "" {
		sf = strings.TrimSpace(fc.StateFile)
	}
	if sf == "" {
		eff.StateFile = filepath.Join(eff.OutputDir, ".mediasort_state.json")
	} else {
		eff.StateFile = absCleanFrom(cwdAbs, sf)
	}

	// workers：0 = 自动；范围 [0, 64]，超出截断。
	workers := 0
	if cli.WorkersSet {
		workers = cli.Workers
	} else if fc.Workers != nil {
		workers = *fc.Workers
	}
	if workers < 0 {
		workers = 0
	}
	if workers > 64 {
		workers = 64
	}
	eff.Workers = workers

	// large_file_threshold：必须为正。
	threshold := int64(DefaultLargeFileThreshold)
	if cli.ThresholdSet {
		threshold = cli.Threshold
	} else if fc.LargeFileThreshold != nil {
		threshold = *fc.LargeFileThreshold
	}
	if threshold <= 0 {
		return Effective{}, &Error{Code: ErrCodeInvalid, Err: fmt.Errorf("large_file_threshold 必须为正数，实际是 %d", threshold)}
	}
	eff.LargeFileThreshold = threshold

	eff.ProbeTimeoutSec = DefaultProbeTimeoutSec
	if fc.ProbeTimeoutSec != nil {
		if *fc.ProbeTimeoutSec <= 0 {
			return Effective{}, &Error{Code: ErrCodeInvalid, Err: fmt.Errorf("probe_timeout_sec 必须为正数")}
		}
		eff.ProbeTimeoutSec = *fc.ProbeTimeoutSec
	}

	if cli.DryRunSet {
		eff.DryRun = cli.DryRun
	}

	eff.imageExts = extSet(fc.ImageExtensions, defaultImageExts)
	eff.videoExts = extSet(fc.VideoExtensions, defaultVideoExts)
	eff.rawExts = extSet(fc.RawExtensions, defaultRawExts)

	return eff, nil
}

var defaultImageExts = []string{
	"jpg", "jpeg", "png", "gif", "bmp", "webp",
	"heic", "heif", "avif", "tiff", "tif",
}

var defaultVideoExts = []string{
	"mp4", "mov", "avi", "mkv", "wmv", "flv", "m4v", "3gp",
}

var defaultRawExts = []string{
	"raw", "arw", "cr2", "cr3", "nef", "orf", "rw2",
	"dng", "raf", "srw", "pef",
}

func extSet(custom, def []string) map[string]struct{} {
	src := custom
	if len(src) == 0 {
		src = def
	}
	m := make(map[string]struct{}, len(src))
	for _, e := range src {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e == "" {
			continue
		}
		m[e] = struct{}{}
	}
	return m
}

// KindOf 按扩展名（".jpg" 或 "jpg" 形态均可）判定媒体类别。
// raw 优先于 image：raw 扩展同时出现在两个列表时按 raw 处理。
func (e Effective) KindOf(ext string) (domain.Kind, bool) {
	x := strings.ToLower(strings.TrimPrefix(ext, "."))
	if _, ok := e.rawExts[x]; ok {
		return domain.KindRaw, true
	}
	if _, ok := e.videoExts[x]; ok {
		return domain.KindVideo, true
	}
	if _, ok := e.imageExts[x]; ok {
		return domain.KindImage, true
	}
	return "", false
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}
