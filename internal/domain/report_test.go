package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	r := RunReport{
		Mode:       "incremental",
		DryRun:     true,
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Files: []FileResult{
			{Src: "b.jpg", Status: StatusAlreadyPresent},
			{Src: "d.jpg", Status: StatusFailed, ErrorKind: ErrKindIOFailed},
			{Src: "a.jpg", Status: StatusProcessed},
			{Src: "c.jpg", Status: StatusDuplicate},
		},
	}

	r.Finalize()

	order := []string{r.Files[0].Src, r.Files[1].Src, r.Files[2].Src, r.Files[3].Src}
	if order[0] != "a.jpg" || order[1] != "b.jpg" || order[2] != "c.jpg" || order[3] != "d.jpg" {
		t.Fatalf("files 排序不符合契约：%v", order)
	}
	if r.Summary.Processed != 1 || r.Summary.Duplicates != 1 || r.Summary.AlreadyPresent != 1 || r.Summary.Errors != 1 || r.Summary.Total != 4 {
		t.Fatalf("summary 统计不正确：%+v", r.Summary)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	// time.Time 在 UTC 下应输出 'Z' 后缀。
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}

func TestRunReport_Finalize_PlannedCountsAsProcessed(t *testing.T) {
	r := RunReport{
		Files: []FileResult{
			{Src: "a.jpg", Status: StatusPlanned},
			{Src: "b.jpg", Status: StatusProcessed},
		},
	}
	r.Finalize()
	if r.Summary.Processed != 2 {
		t.Fatalf("planned 应计入 processed，实际 %d", r.Summary.Processed)
	}
}

func TestFingerprint_String(t *testing.T) {
	full := Fingerprint{Algo: "xxh64", Sum: 0xabcd}
	if full.String() != "xxh64:000000000000abcd" {
		t.Fatalf("完整指纹格式不符：%q", full.String())
	}
	sampled := Fingerprint{Algo: "xxh64", Sum: 0xabcd, Sampled: true}
	if sampled.String() != "xxh64:000000000000abcd:s" {
		t.Fatalf("采样指纹格式不符：%q", sampled.String())
	}
}

func TestKind_TypeFolder(t *testing.T) {
	cases := []struct {
		kind Kind
		want []string
	}{
		{KindImage, []string{"Photos"}},
		{KindVideo, []string{"Videos"}},
		{KindRaw, []string{"Photos", "Raw"}},
	}
	for _, c := range cases {
		got := c.kind.TypeFolder()
		if len(got) != len(c.want) {
			t.Fatalf("%s 子目录段数量不符：%v", c.kind, got)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%s 子目录段不符：%v", c.kind, got)
			}
		}
	}
}
