package drivers

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

const pinctrlDriverName = "pinctrl"

// PinctrlIO shells out to the Raspberry Pi OS pinctrl utility for
// every single pin operation. Much slower than memory mapped access,
// but needs no register access from the process itself and matches
// what an operator would type by hand.
type PinctrlIO struct {
	// Sudo prefixes every pinctrl invocation, for setups where the
	// service user lacks gpio permissions.
	Sudo bool

	outputs []uint16
	isReady bool

	run commandRunner
}

// commandRunner executes one pinctrl invocation. Swapped out in tests.
type commandRunner func(args ...string) error

func (pc *PinctrlIO) Setup(ctx context.Context, outputs []uint16) error {
	if pc.run == nil {
		_, err := exec.LookPath(pinctrlDriverName)
		if err != nil {
			return errors.Wrap(err, "pinctrl utility not found in PATH")
		}
		pc.run = pc.execPinctrl
	}

	pc.outputs = append(pc.outputs, outputs...)
	pc.isReady = true
	return nil
}

func (pc *PinctrlIO) execPinctrl(args ...string) error {
	name := pinctrlDriverName
	if pc.Sudo {
		args = append([]string{name}, args...)
		name = "sudo"
	}

	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "pinctrl %s failed: %s", strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return nil
}

func (pc *PinctrlIO) ConfigureOutput(pin uint16) error {
	err := pc.checkPin(pin)
	if err != nil {
		return err
	}

	return pc.run("set", fmt.Sprint(pin), "op")
}

func (pc *PinctrlIO) SetLevel(pin uint16, level Level) error {
	err := pc.checkPin(pin)
	if err != nil {
		return err
	}

	arg := "dl"
	if level == High {
		arg = "dh"
	}
	return pc.run("set", fmt.Sprint(pin), arg)
}

func (pc *PinctrlIO) checkPin(pin uint16) error {
	if !pc.isReady {
		return errors.Errorf("pinctrl driver is not ready")
	}
	for _, out := range pc.outputs {
		if out == pin {
			return nil
		}
	}

	return errors.Errorf("pinctrl output (id: %d) not found", pin)
}

func (pc *PinctrlIO) String() string {
	return pinctrlDriverName
}

func (pc *PinctrlIO) IsReady() bool {
	return pc.isReady
}

func (pc *PinctrlIO) Close() error {
	pc.isReady = false
	return nil
}

func (pc *PinctrlIO) GetAllOutputs() (outputs []uint16) {
	outputs = append(outputs, pc.outputs...)
	return
}
