package scan

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/h2non/filetype"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/John-Robertt/mediasort/internal/config"
	"github.com/John-Robertt/mediasort/internal/domain"
)

// sniffLen 是 filetype 判定所需的最大头部长度。
const sniffLen = 261

// Scanner 扫描输入目录树并产出 MediaFile。
// Fs 可注入（测试用 MemMapFs）；默认 OsFs。
type Scanner struct {
	Fs  afero.Fs
	Cfg config.Effective
}

func New(cfg config.Effective) Scanner {
	return Scanner{Fs: afero.NewOsFs(), Cfg: cfg}
}

// Scan 扫描全部输入目录，应用排除规则，返回稳定排序的 MediaFile 列表。
//
// 规则（硬约束）：
// - output root 永久排除（嵌套在输入目录内时不会把已整理文件再扫一遍）
// - exclude_dirs：绝对路径按前缀匹配；相对条目按目录名分量匹配
// - 不存在的输入目录记 warning 后跳过，不视为致命错误
// - 扫描阶段只做 stat；唯一例外是无扩展名文件的头部嗅探（261 字节）
func (s Scanner) Scan() ([]domain.MediaFile, error) {
	files := make([]domain.MediaFile, 0, 128)
	seen := make(map[string]struct{}, 128)

	for _, root := range s.Cfg.InputDirs {
		root = filepath.Clean(root)
		if ok, err := afero.DirExists(s.Fs, root); err != nil {
			return nil, err
		} else if !ok {
			log.Warn().Str("dir", root).Msg("输入目录不存在，跳过")
			continue
		}

		err := afero.Walk(s.Fs, root, func(path string, info os.FileInfo, walkErr error) error {
			if walkErr != nil {
				// 单个子树不可读不拖垮整次扫描。
				log.Warn().Err(walkErr).Str("path", path).Msg("访问路径出错，跳过")
				if info != nil && info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if s.isExcluded(path, root) {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if info.IsDir() {
				return nil
			}
			if strings.HasPrefix(info.Name(), ".") {
				return nil
			}

			kind, ok := s.kindOf(path, info.Name())
			if !ok {
				return nil
			}

			abs := filepath.Clean(path)
			if _, dup := seen[abs]; dup {
				return nil
			}
			seen[abs] = struct{}{}

			rel, err := filepath.Rel(root, abs)
			if err != nil {
				return err
			}

			ext := strings.ToLower(filepath.Ext(info.Name()))
			files = append(files, domain.MediaFile{
				AbsPath: abs,
				RelPath: rel,
				Base:    strings.TrimSuffix(info.Name(), filepath.Ext(info.Name())),
				Ext:     ext,
				Size:    info.Size(),
				ModUnix: info.ModTime().Unix(),
				Kind:    kind,
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(files, func(i, j int) bool { return files[i].AbsPath < files[j].AbsPath })
	return files, nil
}

// kindOf 按扩展名判定类别；无扩展名时退回头部嗅探。
func (s Scanner) kindOf(path, name string) (domain.Kind, bool) {
	ext := filepath.Ext(name)
	if ext != "" {
		return s.Cfg.KindOf(ext)
	}
	return s.sniffKind(path)
}

// sniffKind 读取文件头判定 image/video。
// raw 格式无法用头部区分，嗅探只产出 image/video 两类。
func (s Scanner) sniffKind(path string) (domain.Kind, bool) {
	f, err := s.Fs.Open(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("嗅探打开文件失败")
		return "", false
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && n == 0 {
		return "", false
	}
	head = head[:n]

	t, err := filetype.Match(head)
	if err != nil {
		return "", false
	}
	switch t.MIME.Type {
	case "image":
		return domain.KindImage, true
	case "video":
		return domain.KindVideo, true
	default:
		return "", false
	}
}

func (s Scanner) isExcluded(path, root string) bool {
	path = filepath.Clean(path)

	// output root 永久排除。
	if isUnder(path, s.Cfg.OutputDir) {
		return true
	}

	for _, x := range s.Cfg.ExcludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			if isUnder(path, filepath.Clean(x)) {
				return true
			}
			continue
		}
		// 相对条目：按目录名分量匹配（原样照搬产品契约）。
		name := filepath.Base(filepath.Clean(x))
		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}
		for _, comp := range strings.Split(rel, string(filepath.Separator)) {
			if comp == name {
				return true
			}
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
