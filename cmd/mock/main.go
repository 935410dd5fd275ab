package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"

	"github.com/hubertat/pinkit"
	"github.com/hubertat/pinkit/drivers"
)

func main() {
	log.SetLevel(log.DebugLevel)
	log.Info("pinkit mock instance, no hardware required")
	log.Info("expects a local broker with websockets for the web ui, e.g. mosquitto on :1883/:9001")

	fake := &drivers.MockIoDriver{}
	fake.MonitorStateChanges(os.Stdout)

	pk := &pinkit.PinKit{
		Name: "pinkit-mock",
		Groups: map[string]map[string]uint16{
			"fpga1": {"dan": 18, "nate": 19, "ben": 20, "loaded": 21},
			"fpga2": {"dan": 22, "nate": 23, "ben": 24, "loaded": 25},
		},
		MqttBroker:   "mqtt://localhost:1883",
		WebUiAddr:    ":8080",
		FakeDriver:   fake,
		SkipSelfTest: true,
	}

	err := pk.Run(context.Background())
	if err != nil {
		log.Fatal("pinkit mock terminated", "err", err)
	}
}
