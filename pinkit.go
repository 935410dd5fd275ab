package pinkit

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/hubertat/pinkit/drivers"
	"github.com/hubertat/pinkit/mqtt"
	"github.com/hubertat/pinkit/webui"
)

const disconnectTimeout = 5 * time.Second

// PinKit is the controller root and the json configuration target:
// unmarshal the config file straight into it, then call Run.
// Exactly one output driver must be configured.
type PinKit struct {
	Name string

	// Groups maps group name → line name → physical pin.
	Groups map[string]map[string]uint16

	MqttBroker  string
	TopicPrefix string

	// WebUiAddr enables the operator page server when set (e.g. ":8080").
	WebUiAddr string

	Gpio       *drivers.GpIO
	Mcp23017   *drivers.McpIO
	Pinctrl    *drivers.PinctrlIO
	FakeDriver *drivers.MockIoDriver

	Influx *InfluxRecorder

	SkipSelfTest bool

	registry    *LineRegistry
	ioDriver    drivers.OutputDriver
	coordinator *Coordinator
	mqttClient  *mqtt.MqttClient
	webServer   *webui.Server
	logger      *log.Logger
}

func (pk *PinKit) selectDriver() (drivers.OutputDriver, error) {
	selected := []drivers.OutputDriver{}
	if pk.Gpio != nil {
		selected = append(selected, pk.Gpio)
	}
	if pk.Mcp23017 != nil {
		selected = append(selected, pk.Mcp23017)
	}
	if pk.Pinctrl != nil {
		selected = append(selected, pk.Pinctrl)
	}
	if pk.FakeDriver != nil {
		selected = append(selected, pk.FakeDriver)
	}

	if len(selected) == 0 {
		return nil, errors.New("no output driver configured")
	}
	if len(selected) > 1 {
		return nil, errors.Errorf("exactly one output driver must be configured, got %d", len(selected))
	}
	return selected[0], nil
}

// Init builds the registry, sets up the selected driver and wires the
// coordinator. It performs no pin operations yet.
func (pk *PinKit) Init(ctx context.Context) error {
	pk.logger = log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "pinkit: ",
		Level:  log.GetLevel(),
	})

	registry, err := NewLineRegistry(pk.Groups)
	if err != nil {
		return errors.Wrap(err, "failed to build line registry")
	}
	pk.registry = registry

	driver, err := pk.selectDriver()
	if err != nil {
		return err
	}
	err = driver.Setup(ctx, registry.Pins())
	if err != nil {
		return errors.Wrapf(err, "failed to setup %s driver", driver)
	}
	pk.ioDriver = driver

	pk.coordinator = NewCoordinator(registry, driver, pk.logger)

	if pk.Influx != nil {
		err = pk.Influx.Setup(pk.logger)
		if err != nil {
			return errors.Wrap(err, "failed to setup influx recorder")
		}
		pk.coordinator.SetRecorder(pk.Influx)
	}

	return nil
}

// InitMqtt connects to the broker and subscribes every command topic.
func (pk *PinKit) InitMqtt() (err error) {
	if len(pk.MqttBroker) == 0 {
		err = errors.New("mqtt broker not set")
		return
	}

	mc, err := mqtt.NewMqttClient(pk.MqttBroker, pk.Name)
	if err != nil {
		err = errors.Wrap(err, "failed to create mqtt client")
		return
	}

	pk.mqttClient = mc

	router := NewCommandRouter(pk.coordinator, mc, pk.TopicPrefix, pk.logger)
	err = mc.Connect(router.Handlers())
	if err != nil {
		err = errors.Wrap(err, "failed to connect to mqtt broker")
	}

	return
}

// Run drives the whole lifecycle: build registry and driver, force
// every line OFF, self test, start the operator page, connect to the
// bus, then serve until the context is canceled or a termination
// signal arrives. The shutdown sweep runs on every exit path past
// Init, including fatal startup errors.
func (pk *PinKit) Run(ctx context.Context) error {
	// Termination signals are caught before the first pin operation,
	// so the shutdown sweep also covers a signal arriving during the
	// self test or startup.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := pk.Init(ctx)
	if err != nil {
		return err
	}
	defer pk.Shutdown()

	err = pk.coordinator.Initialize()
	if err != nil {
		return errors.Wrap(err, "pin initialization failed")
	}

	pk.PrintStatus(os.Stdout)

	if !pk.SkipSelfTest {
		pk.coordinator.SelfTest()
	}

	if ctx.Err() != nil {
		pk.logger.Info("shutdown requested during startup")
		return nil
	}

	if len(pk.WebUiAddr) > 0 {
		pk.webServer = webui.NewServer(pk.WebUiAddr, pk.coordinator, pk.logger)
		err = pk.webServer.Start()
		if err != nil {
			return errors.Wrap(err, "failed to start web ui server")
		}
	}

	err = pk.InitMqtt()
	if err != nil {
		return err
	}

	pk.logger.Info("controller ready, listening for commands", "broker", pk.MqttBroker)

	<-ctx.Done()
	pk.logger.Info("shutting down")

	return nil
}

// Shutdown drives every line OFF and tears down collaborators. Safe
// to call on a partially started kit: only what came up is torn down.
func (pk *PinKit) Shutdown() {
	if pk.coordinator != nil {
		err := pk.coordinator.AllOff()
		if err != nil {
			pk.logger.Error("shutdown all-off sweep finished with failures", "err", err)
		}
	}

	if pk.webServer != nil {
		err := pk.webServer.Close()
		if err != nil {
			pk.logger.Error("failed to close web ui server", "err", err)
		}
	}

	if pk.mqttClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		err := pk.mqttClient.Disconnect(ctx)
		cancel()
		if err != nil {
			pk.logger.Error("failed to disconnect from mqtt broker", "err", err)
		}
	}

	if pk.Influx != nil {
		pk.Influx.Close()
	}

	if pk.ioDriver != nil {
		err := pk.ioDriver.Close()
		if err != nil {
			pk.logger.Error("failed to close output driver", "err", err)
		}
	}
}

// PrintStatus writes a human readable summary of the registry and the
// active driver.
func (pk *PinKit) PrintStatus(writer io.Writer) {
	fmt.Fprintln(writer)
	fmt.Fprintf(writer, "=== pinkit: driver %s ===\n", pk.ioDriver)
	for _, entry := range pk.registry.Entries() {
		fmt.Fprintf(writer, "| %s/%s -> pin %d\n", entry.Group, entry.Line, entry.Pin)
	}
	fmt.Fprintln(writer, "-----------------------------")
	fmt.Fprintln(writer)
}
