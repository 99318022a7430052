//go:build !unix

package fsx

// 非 unix 平台没有统一的 EXDEV errno；跨盘错误按普通错误返回。
func isEXDEV(err error) bool { return false }
