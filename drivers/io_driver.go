package drivers

import "context"

// Level is the electrical level asserted on a physical output pin.
// Drivers are level-literal: SetLevel(pin, High) drives the pin high,
// whatever that means for the load wired behind it. Any mapping from
// logical on/off to a level belongs to the caller.
type Level uint8

const (
	Low Level = iota
	High
)

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

// OutputDriver gives access to a set of physical output pins on one
// peripheral. Every call is synchronous and may fail; no retry is
// attempted inside a driver.
type OutputDriver interface {
	Setup(ctx context.Context, outputs []uint16) error
	Close() error
	String() string
	IsReady() bool
	ConfigureOutput(pin uint16) error
	SetLevel(pin uint16, level Level) error
	GetAllOutputs() []uint16
}

func MapAllOutputDrivers() map[string]OutputDriver {
	drivers := []OutputDriver{
		&GpIO{},
		&McpIO{},
		&PinctrlIO{},
		&MockIoDriver{},
	}

	mapped := make(map[string]OutputDriver)
	for _, driver := range drivers {
		mapped[driver.String()] = driver
	}
	return mapped
}
