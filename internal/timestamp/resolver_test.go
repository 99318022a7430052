package timestamp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/John-Robertt/mediasort/internal/config"
	"github.com/John-Robertt/mediasort/internal/domain"
)

func testEffective(t *testing.T) config.Effective {
	t.Helper()
	eff, err := config.LoadEffective("/work", config.CLIArgs{
		InputDirs: []string{"/work/in"},
		OutputDir: "/work/out",
	})
	if err != nil {
		t.Fatalf("构造配置失败：%v", err)
	}
	return eff
}

type fakeProvider struct {
	name string
	t    time.Time
	ok   bool
	err  error
}

func (p fakeProvider) Name() string { return p.name }

func (p fakeProvider) Resolve(_ context.Context, _ domain.MediaFile) (time.Time, bool, error) {
	return p.t, p.ok, p.err
}

func TestResolver_FirstSuccessWins(t *testing.T) {
	t1 := time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local)
	t2 := time.Date(2020, 5, 5, 0, 0, 0, 0, time.Local)
	r := NewResolverWith(
		fakeProvider{name: "first"},
		fakeProvider{name: "second", t: t1, ok: true},
		fakeProvider{name: "third", t: t2, ok: true},
	)

	got, err := r.Resolve(context.Background(), domain.MediaFile{AbsPath: "/x/a.jpg"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got.Provider != "second" || !got.Time.Equal(t1) {
		t.Fatalf("应采用第一个成功来源：%+v", got)
	}
}

func TestResolver_ErrorTreatedAsAbstain(t *testing.T) {
	want := time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local)
	r := NewResolverWith(
		fakeProvider{name: "broken", err: errors.New("读取失败")},
		fakeProvider{name: "fallback", t: want, ok: true},
	)

	got, err := r.Resolve(context.Background(), domain.MediaFile{AbsPath: "/x/a.jpg"})
	if err != nil {
		t.Fatalf("单来源出错不应中断链：%v", err)
	}
	if got.Provider != "fallback" {
		t.Fatalf("应跳过出错来源：%+v", got)
	}
}

func TestResolver_AllAbstain(t *testing.T) {
	r := NewResolverWith(fakeProvider{name: "a"}, fakeProvider{name: "b"})
	if _, err := r.Resolve(context.Background(), domain.MediaFile{AbsPath: "/x/a.jpg"}); err == nil {
		t.Fatalf("全部弃权应报错")
	}
}

func TestMtimeProvider_NeverAbstains(t *testing.T) {
	f := domain.MediaFile{AbsPath: "/x/a.jpg", ModUnix: 1705329000}
	got, ok, err := (MtimeProvider{}).Resolve(context.Background(), f)
	if err != nil || !ok {
		t.Fatalf("mtime 来源永不弃权：ok=%v err=%v", ok, err)
	}
	if !got.Equal(time.Unix(1705329000, 0)) {
		t.Fatalf("mtime 解析不符：%v", got)
	}
}

func TestNewResolver_DefaultChainOrder(t *testing.T) {
	r := NewResolver(testEffective(t))
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	want := []string{"exif", "video", "filename", "mtime"}
	if len(names) != len(want) {
		t.Fatalf("默认链长度不符：%v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("默认链顺序不符：%v", names)
		}
	}
}
