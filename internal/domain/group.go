package domain

// DuplicateGroup 是按指纹聚合后的重复组。
// 为了数据局部性，组内只保存文件下标（指向 []ResolvedFile），避免复制大结构体。
//
// 不变量：每组恰好有一个 canonical 成员（CanonIdx 指向 FileIdx 中的某个下标值）。
type DuplicateGroup struct {
	FP       Fingerprint
	FileIdx  []int
	CanonIdx int // files 切片中的下标，必在 FileIdx 内
}
