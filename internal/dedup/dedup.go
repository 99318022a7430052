// Package dedup 按内容指纹分组并在组内选出规范代表。
//
// 代表的选择基于“文件名干净度”：剥掉已知的副本标记后，
// 剥离名最短者胜出，等长时按原始路径字节序取最小。
package dedup

import (
	"regexp"
	"sort"

	"github.com/John-Robertt/mediasort/internal/domain"
)

// copyMarkers 是各平台复制文件时追加的命名标记。
// 前三个锚定结尾（数字后缀只在结尾才算副本标记），关键词类不锚定。
var copyMarkers = []*regexp.Regexp{
	regexp.MustCompile(` - 副本`),
	regexp.MustCompile(`_\d+$`),
	regexp.MustCompile(` \d+$`),
	regexp.MustCompile(`\(\d+\)$`),
	regexp.MustCompile(`(?i)[- _]copy`),
	regexp.MustCompile(`(?i)[- _]копия`),
}

// stripMarkers 对主干名（不含扩展名）做一轮标记剥离。
func stripMarkers(stem string) string {
	for _, re := range copyMarkers {
		stem = re.ReplaceAllString(stem, "")
	}
	return stem
}

// Group 把已解析文件按指纹分组。返回的组内下标指向 files 切片。
//
// 约束：
// - 每组恰好一个 CanonIdx，且 CanonIdx 必在 FileIdx 中
// - 无指纹的文件各自独立成组（永不被判作重复）
// - enabled 为 false 时等价于“全部独立成组”，分组逻辑整体旁路
// - 组的输出顺序跟随各组首个成员在 files 中的出现顺序，结果可复现
func Group(files []domain.ResolvedFile, enabled bool) []domain.DuplicateGroup {
	groups := make([]domain.DuplicateGroup, 0, len(files))

	if !enabled {
		for i, f := range files {
			groups = append(groups, domain.DuplicateGroup{FP: f.FP, FileIdx: []int{i}, CanonIdx: i})
		}
		return groups
	}

	byFP := make(map[domain.Fingerprint]int)
	for i, f := range files {
		if !f.HasFP {
			groups = append(groups, domain.DuplicateGroup{FileIdx: []int{i}, CanonIdx: i})
			continue
		}
		gi, ok := byFP[f.FP]
		if !ok {
			byFP[f.FP] = len(groups)
			groups = append(groups, domain.DuplicateGroup{FP: f.FP, FileIdx: []int{i}, CanonIdx: i})
			continue
		}
		groups[gi].FileIdx = append(groups[gi].FileIdx, i)
	}

	for gi := range groups {
		if len(groups[gi].FileIdx) > 1 {
			groups[gi].CanonIdx = pickCanonical(files, groups[gi].FileIdx)
		}
	}
	return groups
}

// pickCanonical 在组内选规范代表。
func pickCanonical(files []domain.ResolvedFile, idx []int) int {
	best := idx[0]
	bestStripped := stripMarkers(files[best].Base)
	for _, i := range idx[1:] {
		stripped := stripMarkers(files[i].Base)
		if cleanerThan(stripped, files[i].AbsPath, bestStripped, files[best].AbsPath) {
			best, bestStripped = i, stripped
		}
	}
	return best
}

// cleanerThan 判断 (aStripped, aPath) 是否比 (bStripped, bPath) 更干净。
func cleanerThan(aStripped, aPath, bStripped, bPath string) bool {
	if len(aStripped) != len(bStripped) {
		return len(aStripped) < len(bStripped)
	}
	return aPath < bPath
}

// Duplicates 返回组内非规范成员的下标，顺序稳定（升序）。
func Duplicates(g domain.DuplicateGroup) []int {
	if len(g.FileIdx) <= 1 {
		return nil
	}
	dups := make([]int, 0, len(g.FileIdx)-1)
	for _, i := range g.FileIdx {
		if i != g.CanonIdx {
			dups = append(dups, i)
		}
	}
	sort.Ints(dups)
	return dups
}
