package run

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/John-Robertt/mediasort/internal/config"
	"github.com/John-Robertt/mediasort/internal/domain"
)

type recordingObserver struct {
	mu      sync.Mutex
	started bool
	phases  []domain.Phase
	files   int
}

func (o *recordingObserver) OnStart(_ config.Effective) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = true
}

func (o *recordingObserver) OnPhaseDone(phase domain.Phase, _ map[string]any, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, phase)
}

func (o *recordingObserver) OnFileDone(_, _ int, _ domain.FileResult, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.files++
}

func TestObserver_PhaseSequence(t *testing.T) {
	eff, in, _ := setup(t, nil)
	writeSrc(t, in, "20240115_143000.jpg", []byte("x"))

	obs := &recordingObserver{}
	rr := ExecuteWithObserver(context.Background(), eff, obs)
	if rr.Summary.Processed != 1 {
		t.Fatalf("结果不符：%+v", rr.Summary)
	}

	if !obs.started {
		t.Fatalf("应先收到 OnStart")
	}
	want := []domain.Phase{
		domain.PhaseScanning, domain.PhaseFiltering, domain.PhasePlanning,
		domain.PhaseExecuting, domain.PhaseReporting, domain.PhaseDone,
	}
	if len(obs.phases) != len(want) {
		t.Fatalf("阶段序列不符：%v", obs.phases)
	}
	for i := range want {
		if obs.phases[i] != want[i] {
			t.Fatalf("阶段序列不符：%v", obs.phases)
		}
	}
	if obs.files != 1 {
		t.Fatalf("OnFileDone 次数不符：%d", obs.files)
	}
}

func TestObserver_DryRunStopsAfterPlanning(t *testing.T) {
	eff, in, _ := setup(t, func(c *config.CLIArgs) {
		c.DryRun, c.DryRunSet = true, true
	})
	writeSrc(t, in, "20240115_143000.jpg", []byte("x"))

	obs := &recordingObserver{}
	ExecuteWithObserver(context.Background(), eff, obs)

	for _, p := range obs.phases {
		if p == domain.PhaseExecuting {
			t.Fatalf("dry-run 不应进入执行阶段：%v", obs.phases)
		}
	}
	if obs.files != 0 {
		t.Fatalf("dry-run 不应有执行回调：%d", obs.files)
	}
}
