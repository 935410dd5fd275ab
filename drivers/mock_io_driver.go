package drivers

import (
	"context"
	"fmt"
	"io"
)

const mockDriverName = "mock_driver"

type MockOutput struct {
	pin        uint16
	level      Level
	configured bool

	failConfigure bool
	failSet       bool

	writeTo          io.Writer
	writeStateChange bool
}

// SetCall records one SetLevel invocation, including failed ones.
type SetCall struct {
	Pin   uint16
	Level Level
}

// MockIoDriver keeps pin levels in memory and records every call, so
// tests can assert on what the hardware would have seen. Individual
// pins can be made to fail.
type MockIoDriver struct {
	outputs []*MockOutput
	ready   bool

	setCalls       []SetCall
	configureCalls []uint16

	monitorTo io.Writer
}

func (md *MockIoDriver) Setup(ctx context.Context, outputs []uint16) error {
	for _, outPin := range outputs {
		out := &MockOutput{pin: outPin, level: Low}
		if md.monitorTo != nil {
			out.writeTo = md.monitorTo
			out.writeStateChange = true
		}
		md.outputs = append(md.outputs, out)
	}
	md.ready = true
	return nil
}

func (md *MockIoDriver) Close() error {
	md.ready = false
	return nil
}

func (md *MockIoDriver) String() string {
	return mockDriverName
}

func (md *MockIoDriver) IsReady() bool {
	return md.ready
}

func (md *MockIoDriver) ConfigureOutput(pin uint16) error {
	output, err := md.findOutput(pin)
	if err != nil {
		return err
	}

	md.configureCalls = append(md.configureCalls, pin)
	if output.failConfigure {
		return fmt.Errorf("mock output %d: configure failure injected", pin)
	}

	output.configured = true
	return nil
}

func (md *MockIoDriver) SetLevel(pin uint16, level Level) error {
	output, err := md.findOutput(pin)
	if err != nil {
		return err
	}

	md.setCalls = append(md.setCalls, SetCall{Pin: pin, Level: level})
	if output.failSet {
		return fmt.Errorf("mock output %d: set failure injected", pin)
	}

	if output.writeStateChange && level != output.level {
		fmt.Fprintf(output.writeTo, "[pin %d] level changed to %v\n", output.pin, level)
	}
	output.level = level
	return nil
}

func (md *MockIoDriver) GetAllOutputs() (outputs []uint16) {
	for _, output := range md.outputs {
		outputs = append(outputs, output.pin)
	}
	return
}

func (md *MockIoDriver) findOutput(pin uint16) (*MockOutput, error) {
	for _, output := range md.outputs {
		if pin == output.pin {
			return output, nil
		}
	}
	return nil, fmt.Errorf("mock output %d not found", pin)
}

// MonitorStateChanges makes every output print its level changes,
// useful when running the mock instance interactively.
func (md *MockIoDriver) MonitorStateChanges(writer io.Writer) {
	md.monitorTo = writer
	for _, out := range md.outputs {
		out.writeTo = writer
		out.writeStateChange = true
	}
}

// FailSet makes SetLevel fail for the given pin. The call is still
// recorded and the pin level is left unchanged.
func (md *MockIoDriver) FailSet(pin uint16, fail bool) {
	if output, err := md.findOutput(pin); err == nil {
		output.failSet = fail
	}
}

// FailConfigure makes ConfigureOutput fail for the given pin.
func (md *MockIoDriver) FailConfigure(pin uint16, fail bool) {
	if output, err := md.findOutput(pin); err == nil {
		output.failConfigure = fail
	}
}

// Level reports the current electrical level of a pin.
func (md *MockIoDriver) Level(pin uint16) (Level, error) {
	output, err := md.findOutput(pin)
	if err != nil {
		return Low, err
	}
	return output.level, nil
}

// Configured reports whether a pin was configured as output.
func (md *MockIoDriver) Configured(pin uint16) bool {
	output, err := md.findOutput(pin)
	if err != nil {
		return false
	}
	return output.configured
}

// SetCalls returns every recorded SetLevel call in order.
func (md *MockIoDriver) SetCalls() []SetCall {
	calls := make([]SetCall, len(md.setCalls))
	copy(calls, md.setCalls)
	return calls
}

// ConfigureCalls returns every recorded ConfigureOutput call in order.
func (md *MockIoDriver) ConfigureCalls() []uint16 {
	calls := make([]uint16, len(md.configureCalls))
	copy(calls, md.configureCalls)
	return calls
}

// ResetCalls clears the recorded call history, levels stay.
func (md *MockIoDriver) ResetCalls() {
	md.setCalls = nil
	md.configureCalls = nil
}
