package domain

import "fmt"

// Fingerprint 是用于内容等价判定的快速哈希（非加密用途）。
//
// 约束：
// - 相同 Fingerprint 的两个文件视为重复；不作为加密级内容证明
// - Sampled=true 表示大文件采样哈希（偏移只由文件大小决定，可复现）
type Fingerprint struct {
	Algo    string // "xxh64"
	Sum     uint64
	Sampled bool
}

// String 输出稳定的十六进制形式（report/state 中使用）。
func (f Fingerprint) String() string {
	if f.Sampled {
		return fmt.Sprintf("%s:%016x:s", f.Algo, f.Sum)
	}
	return fmt.Sprintf("%s:%016x", f.Algo, f.Sum)
}
