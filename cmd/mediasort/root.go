package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/mediasort/internal/app/run"
	"github.com/John-Robertt/mediasort/internal/config"
	"github.com/John-Robertt/mediasort/internal/infra/logx"
)

// 退出码约定：0 全部成功；1 存在失败（含致命）；2 参数/配置错误。
const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

var (
	flagConfig     string
	flagInputs     []string
	flagOutput     string
	flagExcludes   []string
	flagMode       string
	flagClassify   string
	flagMonthFmt   string
	flagByType     bool
	flagOperation  string
	flagDedupe     bool
	flagStateFile  string
	flagWorkers    int
	flagThreshold  int64
	flagDryRun     bool
	flagVerbose    bool
	flagLogJSON    bool
	flagNoProgress bool
)

var rootCmd = &cobra.Command{
	Use:           "mediasort",
	Short:         "按拍摄时间整理照片与视频，支持去重与增量运行",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "扫描输入目录并把媒体文件整理到输出目录",
	Long: `扫描输入目录中的媒体文件，解析每个文件的创建时间
（EXIF → 视频元数据 → 文件名 → mtime），按内容指纹去重，
再按分类规则放置到输出目录。

运行模式：
  full         不过滤源文件，目标冲突无条件覆盖
  supplement   目标侧已有相同内容则跳过
  incremental  先按水位线过滤时间戳，再做存在性检查（默认）

报告以 JSON 写到 stdout；日志只写 stderr。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMain(cmd)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&flagConfig, "config", "", "TOML 配置文件路径（可选）")
	f.StringSliceVarP(&flagInputs, "input", "i", nil, "输入目录（可重复）")
	f.StringVarP(&flagOutput, "output", "o", "", "输出目录")
	f.StringSliceVar(&flagExcludes, "exclude", nil, "排除目录（目录名或绝对路径，可重复）")
	f.StringVar(&flagMode, "mode", "", "运行模式：full/supplement/incremental")
	f.StringVar(&flagClassify, "classification", "", "时间分类：none/year/year-month")
	f.StringVar(&flagMonthFmt, "month-format", "", "月份格式：nested（YYYY/MM）/combined（YYYY-MM）")
	f.BoolVar(&flagByType, "classify-by-type", false, "按类型追加 Photos/Videos/Raw 子目录")
	f.StringVar(&flagOperation, "operation", "", "文件操作：copy/move/hardlink/symlink")
	f.BoolVar(&flagDedupe, "dedupe", true, "按内容指纹去重")
	f.StringVar(&flagStateFile, "state-file", "", "状态文件路径（默认 <output>/.mediasort_state.json）")
	f.IntVar(&flagWorkers, "workers", 0, "并发 worker 数（0 = CPU 核数，上限 64）")
	f.Int64Var(&flagThreshold, "large-file-threshold", 0, "采样哈希阈值（字节，默认 100MiB）")
	f.BoolVar(&flagDryRun, "dry-run", false, "只生成计划与报告，不落盘")
	f.BoolVarP(&flagVerbose, "verbose", "v", false, "输出调试日志")
	f.BoolVar(&flagLogJSON, "log-json", false, "日志输出 JSON 格式（默认 console）")
	f.BoolVar(&flagNoProgress, "no-progress", false, "关闭进度输出")

	rootCmd.AddCommand(runCmd)
}

func execute() int {
	if err := rootCmd.Execute(); err != nil {
		if code, ok := exitCodeFromErr(err); ok {
			return code
		}
		fmt.Fprintf(os.Stderr, "错误：%v\n", err)
		return exitUsage
	}
	return exitOK
}

// exitErr 让 RunE 能携带精确退出码穿过 cobra。
type exitErr struct{ code int }

func (e *exitErr) Error() string { return fmt.Sprintf("exit %d", e.code) }

func exitCodeFromErr(err error) (int, bool) {
	if e, ok := err.(*exitErr); ok {
		return e.code, true
	}
	return 0, false
}

func runMain(cmd *cobra.Command) error {
	logger := logx.Init(flagVerbose, flagLogJSON)

	cwd, err := os.Getwd()
	if err != nil {
		logger.Error().Err(err).Msg("读取当前目录失败")
		return &exitErr{code: exitFail}
	}

	eff, err := config.LoadEffective(cwd, cliArgs(cmd))
	if err != nil {
		logger.Error().Str("code", config.Code(err)).Msg(err.Error())
		return &exitErr{code: exitUsage}
	}
	eff.ExcludeDirs = append(eff.ExcludeDirs, flagExcludes...)

	// Ctrl-C / SIGTERM：停止派发，在途计划完成后正常收尾出报告。
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var obs run.Observer
	if !flagNoProgress {
		obs = &logObserver{log: logger}
	}

	rr := run.ExecuteWithObserver(ctx, eff, obs)

	// 报告是 stdout 的唯一内容（机器可读契约）。
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rr); err != nil {
		logger.Error().Err(err).Msg("输出报告失败")
		return &exitErr{code: exitFail}
	}

	if rr.Summary.Errors > 0 {
		return &exitErr{code: exitFail}
	}
	return nil
}

// cliArgs 把 cobra flag 转为配置层入参；Changed 区分“显式指定”与默认值，
// 保证 --dedupe=false 这类显式零值能覆盖配置文件。
func cliArgs(cmd *cobra.Command) config.CLIArgs {
	f := cmd.Flags()
	return config.CLIArgs{
		ConfigPath: flagConfig,

		InputDirs: flagInputs,
		OutputDir: flagOutput,

		Mode:              flagMode,
		ModeSet:           f.Changed("mode"),
		Classification:    flagClassify,
		ClassificationSet: f.Changed("classification"),
		MonthFormat:       flagMonthFmt,
		MonthFormatSet:    f.Changed("month-format"),
		ClassifyByType:    flagByType,
		ClassifyByTypeSet: f.Changed("classify-by-type"),

		Operation:      flagOperation,
		OperationSet:   f.Changed("operation"),
		Deduplicate:    flagDedupe,
		DeduplicateSet: f.Changed("dedupe"),

		StateFile:    flagStateFile,
		Workers:      flagWorkers,
		WorkersSet:   f.Changed("workers"),
		Threshold:    flagThreshold,
		ThresholdSet: f.Changed("large-file-threshold"),

		DryRun:    flagDryRun,
		DryRunSet: f.Changed("dry-run"),
	}
}
