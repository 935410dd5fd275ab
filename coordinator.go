package pinkit

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/hubertat/pinkit/drivers"
)

const selfTestOnDuration = 300 * time.Millisecond
const selfTestOffDuration = 100 * time.Millisecond

// TransitionRecorder receives confirmed logical state changes.
type TransitionRecorder interface {
	RecordTransition(group, line string, on bool)
}

// Coordinator owns the logical on/off state of every registered line
// and is the only caller of the output driver. The lines sit behind
// UDN2981A source drivers, which invert: a line is energized by
// driving its pin Low and released by driving it High. That mapping
// lives in levelFor and nowhere else.
//
// One mutex serializes every entry point, including the shutdown
// sweep; the mqtt client delivers messages on its own goroutines.
type Coordinator struct {
	mu sync.Mutex

	registry *LineRegistry
	driver   drivers.OutputDriver
	state    map[LineKey]bool

	recorder TransitionRecorder
	logger   *log.Logger
}

func NewCoordinator(registry *LineRegistry, driver drivers.OutputDriver, logger *log.Logger) *Coordinator {
	return &Coordinator{
		registry: registry,
		driver:   driver,
		state:    make(map[LineKey]bool, len(registry.Entries())),
		logger:   logger,
	}
}

// SetRecorder attaches an optional recorder for confirmed transitions.
func (co *Coordinator) SetRecorder(recorder TransitionRecorder) {
	co.mu.Lock()
	defer co.mu.Unlock()
	co.recorder = recorder
}

// levelFor maps logical intent to the electrical level: energize with
// Low, release with High (UDN2981A inverted logic).
func levelFor(on bool) drivers.Level {
	if on {
		return drivers.Low
	}
	return drivers.High
}

// Initialize configures every registered pin as output and drives it
// High, so all lines start in a known OFF state whatever was left on
// the hardware. Any failure here is fatal for the caller: a line that
// could not be configured is an unsafe hardware state.
func (co *Coordinator) Initialize() error {
	co.mu.Lock()
	defer co.mu.Unlock()

	for _, entry := range co.registry.Entries() {
		err := co.driver.ConfigureOutput(entry.Pin)
		if err != nil {
			return errors.Wrapf(err, "failed to configure pin %d (%s/%s) as output", entry.Pin, entry.Group, entry.Line)
		}
		err = co.driver.SetLevel(entry.Pin, drivers.High)
		if err != nil {
			return errors.Wrapf(err, "failed to drive pin %d (%s/%s) high", entry.Pin, entry.Group, entry.Line)
		}
		co.state[LineKey{Group: entry.Group, Line: entry.Line}] = false
		co.logger.Debug("pin configured", "group", entry.Group, "line", entry.Line, "pin", entry.Pin)
	}

	co.logger.Info("all pins configured, all lines off", "lines", len(co.state))
	return nil
}

// Apply drives one line to the desired logical state. The recorded
// state only changes after the driver confirmed the level: on failure
// it keeps reflecting the last confirmed physical action.
func (co *Coordinator) Apply(group, line string, on bool) error {
	co.mu.Lock()
	defer co.mu.Unlock()

	pin, err := co.registry.Resolve(group, line)
	if err != nil {
		co.logger.Warn("command for unknown line dropped", "group", group, "line", line)
		return err
	}

	level := levelFor(on)
	err = co.driver.SetLevel(pin, level)
	if err != nil {
		co.logger.Error("failed to set pin level", "group", group, "line", line, "pin", pin, "level", level, "err", err)
		return errors.Wrapf(err, "failed to drive pin %d %s", pin, level)
	}

	key := LineKey{Group: group, Line: line}
	changed := co.state[key] != on
	co.state[key] = on
	co.logger.Info("line set", "group", group, "line", line, "pin", pin, "level", level, "on", on)

	if changed && co.recorder != nil {
		co.recorder.RecordTransition(group, line, on)
	}

	return nil
}

// AllOff drives every registered line to OFF (pin High). This is the
// recovery path: it never aborts early, individual failures are
// collected and reported together. State is updated only for lines
// the driver confirmed.
func (co *Coordinator) AllOff() error {
	co.mu.Lock()
	defer co.mu.Unlock()

	var err error
	for _, entry := range co.registry.Entries() {
		setErr := co.driver.SetLevel(entry.Pin, drivers.High)
		if setErr != nil {
			co.logger.Error("failed to drive pin high", "group", entry.Group, "line", entry.Line, "pin", entry.Pin, "err", setErr)
			if err == nil {
				err = errors.Wrapf(setErr, "failed to drive pin %d (%s/%s) high", entry.Pin, entry.Group, entry.Line)
			} else {
				err = errors.Wrap(err, setErr.Error())
			}
			continue
		}

		key := LineKey{Group: entry.Group, Line: entry.Line}
		if co.state[key] && co.recorder != nil {
			co.recorder.RecordTransition(entry.Group, entry.Line, false)
		}
		co.state[key] = false
	}

	if err != nil {
		return errors.Wrap(err, "all-off sweep finished with failures")
	}

	co.logger.Info("all lines off")
	return nil
}

// SelfTest energizes then releases every line in turn, with settle
// delays, so an operator can eyeball the hardware. Failures are
// logged and the walk continues; every line ends electrically OFF.
// Recorded logical state is not touched.
func (co *Coordinator) SelfTest() {
	co.mu.Lock()
	defer co.mu.Unlock()

	co.logger.Info("running line self test")
	for _, entry := range co.registry.Entries() {
		err := co.driver.SetLevel(entry.Pin, drivers.Low)
		if err != nil {
			co.logger.Error("self test: failed to energize line", "group", entry.Group, "line", entry.Line, "err", err)
		}
		time.Sleep(selfTestOnDuration)

		err = co.driver.SetLevel(entry.Pin, drivers.High)
		if err != nil {
			co.logger.Error("self test: failed to release line", "group", entry.Group, "line", entry.Line, "err", err)
		}
		time.Sleep(selfTestOffDuration)
	}
	co.logger.Info("line self test complete")
}

// States returns a copy of the recorded logical state, grouped for
// presentation. Access to live state stays with the coordinator.
func (co *Coordinator) States() map[string]map[string]bool {
	co.mu.Lock()
	defer co.mu.Unlock()

	states := make(map[string]map[string]bool)
	for key, on := range co.state {
		group, found := states[key.Group]
		if !found {
			group = make(map[string]bool)
			states[key.Group] = group
		}
		group[key.Line] = on
	}
	return states
}

// Registry exposes the static line registry for collaborators that
// need to enumerate bindings (topic subscriptions, status listing).
func (co *Coordinator) Registry() *LineRegistry {
	return co.registry
}
