package pinkit

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/hubertat/pinkit/drivers"
)

func setupCoordinatorForTest(t testing.TB, groups map[string]map[string]uint16) (*Coordinator, *drivers.MockIoDriver) {
	t.Helper()

	reg, err := NewLineRegistry(groups)
	if err != nil {
		t.Fatalf("NewLineRegistry returned err: %v", err)
	}

	md := &drivers.MockIoDriver{}
	err = md.Setup(context.Background(), reg.Pins())
	if err != nil {
		t.Fatalf("mock driver Setup returned err: %v", err)
	}

	return NewCoordinator(reg, md, log.New(io.Discard)), md
}

func assertLevel(t testing.TB, md *drivers.MockIoDriver, pin uint16, want drivers.Level) {
	t.Helper()

	got, err := md.Level(pin)
	if err != nil {
		t.Fatalf("Level returned err: %v", err)
	}
	if got != want {
		t.Errorf("pin %d: got level %v want %v", pin, got, want)
	}
}

func assertState(t testing.TB, co *Coordinator, group, line string, want bool) {
	t.Helper()

	got, found := co.States()[group][line]
	if !found {
		t.Fatalf("no state recorded for %s/%s", group, line)
	}
	if got != want {
		t.Errorf("%s/%s: got state %v want %v", group, line, got, want)
	}
}

func TestInitializeForcesAllLinesOff(t *testing.T) {
	co, md := setupCoordinatorForTest(t, map[string]map[string]uint16{
		"fpga1": {"dan": 18, "nate": 19},
	})

	err := co.Initialize()
	if err != nil {
		t.Fatalf("Initialize returned err: %v", err)
	}

	for _, pin := range []uint16{18, 19} {
		if !md.Configured(pin) {
			t.Errorf("pin %d not configured as output", pin)
		}
		assertLevel(t, md, pin, drivers.High)
	}

	assertState(t, co, "fpga1", "dan", false)
	assertState(t, co, "fpga1", "nate", false)

	highs := 0
	for _, call := range md.SetCalls() {
		if call.Level == drivers.High {
			highs++
		}
	}
	if highs != 2 {
		t.Errorf("every pin should be driven high once, got %d high calls", highs)
	}
}

func TestInitializeFailsOnConfigureFailure(t *testing.T) {
	co, md := setupCoordinatorForTest(t, map[string]map[string]uint16{
		"fpga1": {"dan": 18, "nate": 19},
	})

	md.FailConfigure(18, true)

	err := co.Initialize()
	if err == nil {
		t.Error("Initialize should fail when a pin cannot be configured")
	}
}

func TestApplyPolarityInversion(t *testing.T) {
	co, md := setupCoordinatorForTest(t, map[string]map[string]uint16{
		"fpga1": {"dan": 18},
	})
	co.Initialize()

	err := co.Apply("fpga1", "dan", true)
	if err != nil {
		t.Fatalf("Apply returned err: %v", err)
	}
	assertLevel(t, md, 18, drivers.Low)
	assertState(t, co, "fpga1", "dan", true)

	err = co.Apply("fpga1", "dan", false)
	if err != nil {
		t.Fatalf("Apply returned err: %v", err)
	}
	assertLevel(t, md, 18, drivers.High)
	assertState(t, co, "fpga1", "dan", false)
}

func TestApplyIdempotent(t *testing.T) {
	co, md := setupCoordinatorForTest(t, map[string]map[string]uint16{
		"fpga1": {"dan": 18},
	})
	co.Initialize()
	md.ResetCalls()

	co.Apply("fpga1", "dan", true)
	co.Apply("fpga1", "dan", true)

	assertState(t, co, "fpga1", "dan", true)
	assertLevel(t, md, 18, drivers.Low)

	calls := md.SetCalls()
	if len(calls) != 2 {
		t.Fatalf("expected one driver call per Apply, got %d", len(calls))
	}
	for _, call := range calls {
		if call.Pin != 18 || call.Level != drivers.Low {
			t.Errorf("unexpected call: %+v", call)
		}
	}
}

func TestApplyUnknownLine(t *testing.T) {
	co, md := setupCoordinatorForTest(t, map[string]map[string]uint16{
		"fpga1": {"dan": 18},
	})
	co.Initialize()
	md.ResetCalls()

	err := co.Apply("ghost", "none", true)
	if !errors.Is(err, ErrLineNotFound) {
		t.Errorf("got %v want ErrLineNotFound", err)
	}

	if len(md.SetCalls()) != 0 {
		t.Errorf("unknown line must cause zero driver calls, got %d", len(md.SetCalls()))
	}
	assertState(t, co, "fpga1", "dan", false)
}

func TestApplyDriverFailureKeepsState(t *testing.T) {
	co, md := setupCoordinatorForTest(t, map[string]map[string]uint16{
		"fpga1": {"dan": 18},
	})
	co.Initialize()

	md.FailSet(18, true)

	err := co.Apply("fpga1", "dan", true)
	if err == nil {
		t.Error("Apply should report driver failure")
	}
	if errors.Is(err, ErrLineNotFound) {
		t.Error("driver failure must not be reported as unknown line")
	}

	assertState(t, co, "fpga1", "dan", false)
	assertLevel(t, md, 18, drivers.High)
}

func TestAllOffSweepsPastFailures(t *testing.T) {
	co, md := setupCoordinatorForTest(t, map[string]map[string]uint16{
		"fpga1": {"dan": 18, "nate": 19},
		"fpga2": {"dan": 22},
	})
	co.Initialize()

	co.Apply("fpga1", "dan", true)
	co.Apply("fpga1", "nate", true)
	co.Apply("fpga2", "dan", true)

	md.FailSet(19, true)
	md.ResetCalls()

	err := co.AllOff()
	if err == nil {
		t.Error("AllOff should report partial failure")
	}

	attempted := map[uint16]bool{}
	for _, call := range md.SetCalls() {
		if call.Level != drivers.High {
			t.Errorf("AllOff must only drive pins high, got %+v", call)
		}
		attempted[call.Pin] = true
	}
	for _, pin := range []uint16{18, 19, 22} {
		if !attempted[pin] {
			t.Errorf("pin %d was not attempted", pin)
		}
	}

	assertState(t, co, "fpga1", "dan", false)
	assertState(t, co, "fpga2", "dan", false)
	// the failed line keeps its last confirmed state
	assertState(t, co, "fpga1", "nate", true)
}

func TestAllOffClean(t *testing.T) {
	co, _ := setupCoordinatorForTest(t, map[string]map[string]uint16{
		"fpga1": {"dan": 18, "nate": 19},
	})
	co.Initialize()
	co.Apply("fpga1", "dan", true)

	err := co.AllOff()
	if err != nil {
		t.Errorf("AllOff returned err: %v", err)
	}

	assertState(t, co, "fpga1", "dan", false)
	assertState(t, co, "fpga1", "nate", false)
}

func TestSelfTestEndsAllLinesOff(t *testing.T) {
	co, md := setupCoordinatorForTest(t, map[string]map[string]uint16{
		"fpga1": {"dan": 18, "nate": 19},
	})
	co.Initialize()
	md.ResetCalls()

	co.SelfTest()

	calls := md.SetCalls()
	if len(calls) != 4 {
		t.Fatalf("expected low+high per pin, got %d calls", len(calls))
	}
	for i := 0; i < len(calls); i += 2 {
		if calls[i].Level != drivers.Low || calls[i+1].Level != drivers.High {
			t.Errorf("pin %d: expected low then high, got %v then %v", calls[i].Pin, calls[i].Level, calls[i+1].Level)
		}
		if calls[i].Pin != calls[i+1].Pin {
			t.Errorf("low/high pair should hit the same pin, got %d and %d", calls[i].Pin, calls[i+1].Pin)
		}
	}

	assertLevel(t, md, 18, drivers.High)
	assertLevel(t, md, 19, drivers.High)
	assertState(t, co, "fpga1", "dan", false)
	assertState(t, co, "fpga1", "nate", false)
}

type recordingRecorder struct {
	transitions []string
}

func (rr *recordingRecorder) RecordTransition(group, line string, on bool) {
	state := "off"
	if on {
		state = "on"
	}
	rr.transitions = append(rr.transitions, group+"/"+line+":"+state)
}

func TestRecorderGetsConfirmedTransitionsOnly(t *testing.T) {
	co, md := setupCoordinatorForTest(t, map[string]map[string]uint16{
		"fpga1": {"dan": 18},
	})
	co.Initialize()

	rec := &recordingRecorder{}
	co.SetRecorder(rec)

	co.Apply("fpga1", "dan", true)
	co.Apply("fpga1", "dan", true)

	md.FailSet(18, true)
	co.Apply("fpga1", "dan", false)
	md.FailSet(18, false)

	co.AllOff()

	want := []string{"fpga1/dan:on", "fpga1/dan:off"}
	if len(rec.transitions) != len(want) {
		t.Fatalf("got transitions %v want %v", rec.transitions, want)
	}
	for i, tr := range rec.transitions {
		if tr != want[i] {
			t.Errorf("transition [%d]: got %s want %s", i, tr, want[i])
		}
	}
}
