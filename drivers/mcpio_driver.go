package drivers

import (
	"context"
	"fmt"

	"github.com/racerxdl/go-mcp23017"
)

const mcpioDriverName = "mcpio"

// McpIO drives the outputs of an MCP23017 I2C port expander.
type McpIO struct {
	device *mcp23017.Device

	outputs []uint16
	isReady bool

	BusNo uint8
	DevNo uint8
}

func (mcp *McpIO) Setup(ctx context.Context, outputs []uint16) (err error) {
	mcp.device, err = mcp23017.Open(mcp.BusNo, mcp.DevNo)
	if err != nil {
		return
	}

	for _, outputPin := range outputs {
		if outputPin > 255 {
			err = fmt.Errorf("output pin out of range (mcpio takes uint8 pin id)")
			return
		}
		mcp.outputs = append(mcp.outputs, outputPin)
	}

	mcp.isReady = true
	return
}

func (mcp *McpIO) ConfigureOutput(pin uint16) error {
	err := mcp.checkPin(pin)
	if err != nil {
		return err
	}

	return mcp.device.PinMode(uint8(pin), mcp23017.OUTPUT)
}

func (mcp *McpIO) SetLevel(pin uint16, level Level) error {
	err := mcp.checkPin(pin)
	if err != nil {
		return err
	}

	return mcp.device.DigitalWrite(uint8(pin), mcp23017.PinLevel(level == High))
}

func (mcp *McpIO) checkPin(pin uint16) error {
	if !mcp.isReady {
		return fmt.Errorf("mcpio driver is not ready")
	}
	for _, out := range mcp.outputs {
		if out == pin {
			return nil
		}
	}

	return fmt.Errorf("mcpio output (id: %d) not found", pin)
}

func (mcp *McpIO) String() string {
	return mcpioDriverName
}

func (mcp *McpIO) IsReady() bool {
	return mcp.isReady
}

func (mcp *McpIO) Close() error {
	mcp.isReady = false
	return mcp.device.Close()
}

func (mcp *McpIO) GetAllOutputs() (outputs []uint16) {
	outputs = append(outputs, mcp.outputs...)
	return
}
