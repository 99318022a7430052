package fingerprint

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/John-Robertt/mediasort/internal/domain"
)

func fixedTime(t time.Time) ResolveTimeFunc {
	return func(_ context.Context, _ domain.MediaFile) (time.Time, string, error) {
		return t, "mtime", nil
	}
}

func mediaFileAt(t *testing.T, name string, data []byte) domain.MediaFile {
	t.Helper()
	p := writeTemp(t, name, data)
	fi, err := os.Stat(p)
	if err != nil {
		t.Fatalf("stat 失败：%v", err)
	}
	return domain.MediaFile{AbsPath: p, RelPath: name, Base: name, Size: fi.Size(), Kind: domain.KindImage}
}

func TestPool_ResolveAll(t *testing.T) {
	want := time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local)
	files := []domain.MediaFile{
		mediaFileAt(t, "a.jpg", []byte("aaa")),
		mediaFileAt(t, "b.jpg", []byte("bbb")),
		mediaFileAt(t, "c.jpg", []byte("aaa")),
	}

	p := NewPool(2, 1<<20, true, fixedTime(want))
	resolved, failures := p.ResolveAll(context.Background(), files)
	if len(failures) != 0 {
		t.Fatalf("不期望失败：%+v", failures)
	}
	if len(resolved) != 3 {
		t.Fatalf("期望 3 个结果，实际 %d", len(resolved))
	}

	// 结果保持输入顺序。
	for i, rf := range resolved {
		if rf.RelPath != files[i].RelPath {
			t.Fatalf("结果顺序不符：%+v", resolved)
		}
		if !rf.Time.Equal(want) || rf.Provider != "mtime" {
			t.Fatalf("时间解析不符：%+v", rf)
		}
		if !rf.HasFP {
			t.Fatalf("应计算指纹：%+v", rf)
		}
	}

	// 内容相同指纹相同，不同内容指纹不同。
	if resolved[0].FP != resolved[2].FP {
		t.Fatalf("相同内容指纹应一致")
	}
	if resolved[0].FP == resolved[1].FP {
		t.Fatalf("不同内容指纹不应一致")
	}
}

func TestPool_FailureIsolated(t *testing.T) {
	ok := mediaFileAt(t, "ok.jpg", []byte("x"))
	gone := domain.MediaFile{AbsPath: "/definitely/not/here.jpg", RelPath: "gone.jpg", Size: 1, Kind: domain.KindImage}

	p := NewPool(2, 1<<20, true, fixedTime(time.Unix(0, 0)))
	resolved, failures := p.ResolveAll(context.Background(), []domain.MediaFile{gone, ok})
	if len(resolved) != 1 || resolved[0].RelPath != "ok.jpg" {
		t.Fatalf("失败不应波及其他文件：%+v", resolved)
	}
	if len(failures) != 1 || failures[0].File.RelPath != "gone.jpg" {
		t.Fatalf("失败应被记录：%+v", failures)
	}
}

func TestPool_TimeErrorRecorded(t *testing.T) {
	f := mediaFileAt(t, "a.jpg", []byte("x"))
	boom := errors.New("时间解析失败")
	p := NewPool(1, 1<<20, true, func(_ context.Context, _ domain.MediaFile) (time.Time, string, error) {
		return time.Time{}, "", boom
	})

	resolved, failures := p.ResolveAll(context.Background(), []domain.MediaFile{f})
	if len(resolved) != 0 {
		t.Fatalf("时间解析失败不应产出结果：%+v", resolved)
	}
	if len(failures) != 1 || !errors.Is(failures[0].Err, boom) {
		t.Fatalf("失败记录不符：%+v", failures)
	}
}

func TestPool_NoFingerprintWhenDisabled(t *testing.T) {
	f := mediaFileAt(t, "a.jpg", []byte("x"))
	p := NewPool(1, 1<<20, false, fixedTime(time.Unix(0, 0)))

	resolved, failures := p.ResolveAll(context.Background(), []domain.MediaFile{f})
	if len(failures) != 0 || len(resolved) != 1 {
		t.Fatalf("结果不符：%+v %+v", resolved, failures)
	}
	if resolved[0].HasFP {
		t.Fatalf("关闭指纹时不应计算：%+v", resolved[0])
	}
}

func TestPool_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := mediaFileAt(t, "a.jpg", []byte("x"))
	p := NewPool(1, 1<<20, true, fixedTime(time.Unix(0, 0)))
	resolved, failures := p.ResolveAll(ctx, []domain.MediaFile{f, f})
	if len(resolved) != 0 {
		t.Fatalf("已取消的上下文不应产出结果：%+v", resolved)
	}
	if len(failures) != 2 {
		t.Fatalf("未处理文件应按取消失败计入：%+v", failures)
	}
	for _, fl := range failures {
		if !errors.Is(fl.Err, context.Canceled) {
			t.Fatalf("失败原因应为取消：%v", fl.Err)
		}
	}
}

func TestPool_EmptyBatch(t *testing.T) {
	p := NewPool(1, 1<<20, true, fixedTime(time.Unix(0, 0)))
	resolved, failures := p.ResolveAll(context.Background(), nil)
	if resolved != nil || failures != nil {
		t.Fatalf("空批次应返回 nil：%+v %+v", resolved, failures)
	}
}
