package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/hubertat/servicemaker"

	"github.com/hubertat/pinkit"
)

var (
	Version string
	Build   string

	config       = flag.String("config", "config.json", "path of the configuration file")
	flagInstall  = flag.Bool("install", false, "Install service in os")
	skipSelfTest = flag.Bool("skip-self-test", false, "skip the startup line self test")
	debug        = flag.Bool("debug", false, "enable debug logging")

	pinkitService = servicemaker.ServiceMaker{
		User:               "pinkit",
		UserGroups:         []string{"gpio"},
		ServicePath:        "/etc/systemd/system/pinkit.service",
		ServiceDescription: "pinkit service: MQTT controlled output pin driver. github.com/hubertat/pinkit",
		ExecDir:            "/srv/pinkit",
		ExecName:           "pinkit",
	}
)

func main() {
	flag.Parse()

	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	log.Info("pinkit started", "version", Version)

	if *flagInstall {
		err := pinkitService.InstallService()
		if err != nil {
			log.Fatal("service install failed", "err", err)
		}
		log.Info("service installed!")
		return
	}

	pk := &pinkit.PinKit{}

	configFile, err := os.Open(*config)
	if err != nil {
		log.Fatal("can't find/open config file, will terminate", "path", *config, "err", err)
	}
	cBuff, err := io.ReadAll(configFile)
	configFile.Close()
	if err != nil {
		log.Fatal("failed reading config file", "err", err)
	}
	err = json.Unmarshal(cBuff, pk)
	if err != nil {
		log.Fatal("failed unmarshalling json config", "err", err)
	}

	if *skipSelfTest {
		pk.SkipSelfTest = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = pk.Run(ctx)
	if err != nil {
		log.Fatal("pinkit terminated", "err", err)
	}
}
