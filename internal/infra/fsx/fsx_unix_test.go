//go:build unix

package fsx

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestRename_EXDEV_MarkedAsCrossDevice(t *testing.T) {
	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}
	defer func() { renameFunc = old }()

	err := Rename("/a", "/b")
	if !IsCrossDevice(err) {
		t.Fatalf("期望 CrossDeviceError，实际：%v", err)
	}
}

func TestLink_EXDEV_MarkedAsCrossDevice(t *testing.T) {
	old := linkFunc
	linkFunc = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "link", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}
	defer func() { linkFunc = old }()

	err := Link("/a", "/b")
	if !IsCrossDevice(err) {
		t.Fatalf("期望 CrossDeviceError，实际：%v", err)
	}
}

func TestLink_RealHardlink(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatalf("准备源文件失败：%v", err)
	}

	dst := filepath.Join(dir, "b.jpg")
	if err := Link(src, dst); err != nil {
		t.Fatalf("同盘 hardlink 不应失败：%v", err)
	}

	b, err := os.ReadFile(dst)
	if err != nil || string(b) != "x" {
		t.Fatalf("hardlink 内容不一致：%v %q", err, string(b))
	}
}
