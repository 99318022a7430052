// Package state 持久化两份运行状态：
//
//   - ProcessingState（JSON）：指纹 → 目标相对路径，供 supplement/incremental
//     识别“内容已在目标侧”而无需重扫目标树
//   - Watermark（TOML）：最新已整理时间戳，供 incremental 快速过滤源文件
//
// 两份状态都是尽力而为的缓存：缺失或损坏一律按“空状态”处理并告警，
// 绝不让一次状态文件损坏毁掉整次运行。写入只在运行收尾发生一次，原子替换。
package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/John-Robertt/mediasort/internal/domain"
	"github.com/John-Robertt/mediasort/internal/infra/fsx"
)

const stateVersion = 1

var ErrReadOnly = errors.New("state: read-only")

// Store 提供状态文件读写。
//
// 约束：
// - dry-run：只允许读（ReadOnly=true），写一律返回 ErrReadOnly
// - apply：允许写（ReadOnly=false）
type Store struct {
	StatePath string // ProcessingState 的绝对路径
	OutputDir string // 水位线固定放在输出根下
	ReadOnly  bool
}

func New(statePath, outputDir string, readOnly bool) Store {
	return Store{
		StatePath: filepath.Clean(statePath),
		OutputDir: filepath.Clean(outputDir),
		ReadOnly:  readOnly,
	}
}

// ProcessingState 是已落位内容的指纹索引。
type ProcessingState struct {
	Version int `json:"version"`
	// Entries：指纹字符串形态（见 domain.Fingerprint.String）→ 目标相对路径。
	Entries map[string]string `json:"entries"`
}

func NewProcessingState() *ProcessingState {
	return &ProcessingState{Version: stateVersion, Entries: map[string]string{}}
}

// Has 查询指纹是否已落位，返回记录的目标相对路径。
func (s *ProcessingState) Has(fp domain.Fingerprint) (string, bool) {
	rel, ok := s.Entries[fp.String()]
	return rel, ok
}

// Record 记录一条新落位。相同指纹后写覆盖先写（目标路径以最近一次为准）。
func (s *ProcessingState) Record(fp domain.Fingerprint, destRel string) {
	s.Entries[fp.String()] = destRel
}

func (s *ProcessingState) Len() int { return len(s.Entries) }

// LoadState 读取 ProcessingState。缺失、损坏、版本不符都返回空状态。
func (st Store) LoadState() *ProcessingState {
	b, err := os.ReadFile(st.StatePath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", st.StatePath).Msg("状态文件不可读，按空状态处理")
		}
		return NewProcessingState()
	}

	var s ProcessingState
	if err := json.Unmarshal(b, &s); err != nil {
		log.Warn().Err(err).Str("path", st.StatePath).Msg("状态文件损坏，按空状态处理")
		return NewProcessingState()
	}
	if s.Version != stateVersion {
		log.Warn().Int("version", s.Version).Str("path", st.StatePath).
			Msg("状态文件版本不符，按空状态处理")
		return NewProcessingState()
	}
	if s.Entries == nil {
		s.Entries = map[string]string{}
	}
	return &s
}

// SaveState 原子重写 ProcessingState。
func (st Store) SaveState(s *ProcessingState) error {
	if st.ReadOnly {
		return ErrReadOnly
	}
	s.Version = stateVersion
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(filepath.Dir(st.StatePath), filepath.Base(st.StatePath), b)
}
