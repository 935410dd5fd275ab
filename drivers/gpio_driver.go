package drivers

import (
	"context"

	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

const gpioDriverName = "gpio"

// GpIO drives Raspberry Pi GPIO pins through the memory mapped
// /dev/gpiomem interface.
type GpIO struct {
	outputs []uint16

	isReady bool
}

func (gp *GpIO) Setup(ctx context.Context, outputs []uint16) error {
	err := rpio.Open()
	if err != nil {
		return errors.Wrapf(err, "failed to Setup gpio driver for pins: %v; ", outputs)
	}

	for _, outPin := range outputs {
		if outPin > 255 {
			return errors.Errorf("outpin out of range (gpio takes uint8 pin)")
		}
		gp.outputs = append(gp.outputs, outPin)
	}

	gp.isReady = true
	return nil
}

func (gp *GpIO) ConfigureOutput(pin uint16) error {
	err := gp.checkPin(pin)
	if err != nil {
		return err
	}

	rpio.Pin(pin).Output()
	return nil
}

func (gp *GpIO) SetLevel(pin uint16, level Level) error {
	err := gp.checkPin(pin)
	if err != nil {
		return err
	}

	if level == High {
		rpio.Pin(pin).High()
	} else {
		rpio.Pin(pin).Low()
	}

	return nil
}

func (gp *GpIO) checkPin(pin uint16) error {
	if !gp.isReady {
		return errors.Errorf("gpio driver is not ready")
	}
	for _, out := range gp.outputs {
		if out == pin {
			return nil
		}
	}

	return errors.Errorf("GpIO Output (id: %d) not found", pin)
}

func (gp *GpIO) String() string {
	return gpioDriverName
}

func (gp *GpIO) IsReady() bool {
	return gp.isReady
}

// Close releases the gpio memory mapping only, it does not touch pin
// levels: the caller is expected to have driven every line to its safe
// level already.
func (gp *GpIO) Close() error {
	gp.isReady = false
	return rpio.Close()
}

func (gp *GpIO) GetAllOutputs() (outputs []uint16) {
	outputs = append(outputs, gp.outputs...)
	return
}
