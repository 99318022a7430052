package domain

import "time"

// Kind 是按扩展名判定的媒体类别。
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindRaw   Kind = "raw"
)

// TypeFolder 返回按类型分类时的子目录段（Raw 嵌套在 Photos 下）。
func (k Kind) TypeFolder() []string {
	switch k {
	case KindVideo:
		return []string{"Videos"}
	case KindRaw:
		return []string{"Photos", "Raw"}
	default:
		return []string{"Photos"}
	}
}

// MediaFile 描述一次扫描得到的媒体文件。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - 扫描阶段不读文件内容（无扩展名文件的头部嗅探除外）
type MediaFile struct {
	AbsPath string
	RelPath string
	Base    string // 不含扩展名的文件名
	Ext     string // ".jpg"
	Size    int64
	ModUnix int64
	Kind    Kind
}

// ResolvedFile 是完成时间解析与指纹计算后的 MediaFile。
// 一旦生成即不可变；同一次 run 内指纹不会重算。
type ResolvedFile struct {
	MediaFile

	Time     time.Time
	Provider string // 成功产出时间戳的 provider 名（诊断/测试用）

	FP    Fingerprint
	HasFP bool // deduplicate=false 时不计算指纹
}
