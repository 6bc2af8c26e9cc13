package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "gopkg.in/yaml.v2"

	"github.com/benchtop-labs/wfmbridge/digilent"
	"github.com/benchtop-labs/wfmbridge/usbtmc"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "wfmbridge.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(Config{
		ControlAddr: ":5025",
		DataAddr:    ":5026",
		Driver:      "sim",
	}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `wfmbridge exposes a benchtop oscilloscope to remote clients over two
TCP connections: a SCPI text control plane and a binary waveform data plane.

Usage:
	wfmbridge <command>

Commands:
	run
	help
	mkconf
	conf
	devices
	version`
	fmt.Println(str)
}

func help() {
	str := `wfmbridge is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

Without a configuration, the server runs the simulated instrument on the
standard SCPI ports (5025 control, 5026 data).

Device drivers, selected by the "Driver" field:
- "sim": built-in simulated two channel instrument, no hardware required
- vendor SDK drivers register themselves when their build tag is enabled

A local device is selected by enumeration Index and HwConfig; setting Host
opens a networked device instead, with the factory credential pair unless
User/Pass are given.

Set Record to a .parquet or .csv path to persist every streamed capture.
Set HTTPAddr to expose identity, status, and a capture monitor over HTTP.
Set MDNS to announce the control plane via DNS-SD.`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("wfmbridge version %v\n", Version)
}

func devices() {
	fmt.Println("registered drivers:", strings.Join(digilent.Drivers(), ", "))
	insts, err := usbtmc.Enumerate()
	if err != nil {
		log.Fatal(err)
	}
	if len(insts) == 0 {
		fmt.Println("no USBTMC instruments attached")
		return
	}
	for _, inst := range insts {
		fmt.Println(inst)
	}
}

func run() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := buildLogger(c)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()
	if err := serve(c, logger); err != nil {
		logger.Fatalw("bridge exited", "error", err)
	}
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "devices":
		devices()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
