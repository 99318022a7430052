package state

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"

	"github.com/John-Robertt/mediasort/internal/infra/fsx"
)

const (
	watermarkVersion  = 1
	watermarkFilename = ".mediasort_watermark.toml"
)

// Watermark 记录“此时间点及之前的内容都已整理进目标”。
//
// 分类设置一并入档：分类规则变了意味着目标树的形状变了，
// 旧水位线对新布局没有意义，按不存在处理。
type Watermark struct {
	Version         int       `toml:"version"`
	NewestTimestamp time.Time `toml:"newest_timestamp"`
	NewestRelPath   string    `toml:"newest_rel_path"`
	Classification  string    `toml:"classification"`
	MonthFormat     string    `toml:"month_format"`
	LastUpdated     time.Time `toml:"last_updated"`
	FilesProcessed  int       `toml:"files_processed"`
}

// ValidFor 检查水位线是否适用于当前分类设置。
func (w *Watermark) ValidFor(classification, monthFormat string) bool {
	return w.Classification == classification && w.MonthFormat == monthFormat
}

// IsNewer 判断时间戳是否严格晚于水位线（等于水位线视为已整理）。
func (w *Watermark) IsNewer(t time.Time) bool {
	return t.After(w.NewestTimestamp)
}

func (st Store) watermarkPath() string {
	return filepath.Join(st.OutputDir, watermarkFilename)
}

// LoadWatermark 读取水位线。缺失、损坏、版本不符都按不存在处理。
func (st Store) LoadWatermark() (*Watermark, bool) {
	p := st.watermarkPath()
	b, err := os.ReadFile(p)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", p).Msg("水位线文件不可读，按不存在处理")
		}
		return nil, false
	}

	var w Watermark
	if err := toml.Unmarshal(b, &w); err != nil {
		log.Warn().Err(err).Str("path", p).Msg("水位线文件损坏，按不存在处理")
		return nil, false
	}
	if w.Version != watermarkVersion {
		log.Warn().Int("version", w.Version).Str("path", p).
			Msg("水位线版本不符，按不存在处理")
		return nil, false
	}
	return &w, true
}

// SaveWatermark 原子重写水位线，并保证跨运行单调不回退：
// 若磁盘上已有更晚的水位线（例如并发运行先落了盘），保留更晚者。
func (st Store) SaveWatermark(w *Watermark) error {
	if st.ReadOnly {
		return ErrReadOnly
	}

	// 分类设置变更后旧水位线已失效，不参与单调性钳制。
	if old, ok := st.LoadWatermark(); ok &&
		old.ValidFor(w.Classification, w.MonthFormat) &&
		old.NewestTimestamp.After(w.NewestTimestamp) {
		w.NewestTimestamp = old.NewestTimestamp
		w.NewestRelPath = old.NewestRelPath
	}

	w.Version = watermarkVersion
	w.LastUpdated = time.Now().UTC()
	b, err := toml.Marshal(w)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(st.OutputDir, watermarkFilename, b)
}
