package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/benchtop-labs/wfmbridge/bridge"
	"github.com/benchtop-labs/wfmbridge/digilent"
	"github.com/benchtop-labs/wfmbridge/discovery"
	"github.com/benchtop-labs/wfmbridge/httpapi"
	"github.com/benchtop-labs/wfmbridge/recording"
)

// Config holds the initialization parameters for a bridge process.  It is
// to be populated by a yaml/unmarshal call.
type Config struct {
	// ControlAddr is the address the SCPI control plane listens at
	ControlAddr string `yaml:"ControlAddr" koanf:"ControlAddr"`

	// DataAddr is the address the binary data plane listens at
	DataAddr string `yaml:"DataAddr" koanf:"DataAddr"`

	// HTTPAddr is the address of the HTTP observability interface.
	// Empty disables it.
	HTTPAddr string `yaml:"HTTPAddr" koanf:"HTTPAddr"`

	// Driver selects the device driver, e.g. "sim"
	Driver string `yaml:"Driver" koanf:"Driver"`

	// Index and HwConfig open a locally attached device by enumeration
	// position; used when Host is empty
	Index    int `yaml:"Index" koanf:"Index"`
	HwConfig int `yaml:"HwConfig" koanf:"HwConfig"`

	// Host opens a networked device instead of a local one.  User and
	// Pass fall back to the factory credentials when empty.
	Host string `yaml:"Host" koanf:"Host"`
	User string `yaml:"User" koanf:"User"`
	Pass string `yaml:"Pass" koanf:"Pass"`

	// Record writes every streamed capture to this file; format is
	// chosen by extension (.parquet or .csv).  Empty disables it.
	Record string `yaml:"Record" koanf:"Record"`

	// MDNS announces the control plane on the local network
	MDNS bool `yaml:"MDNS" koanf:"MDNS"`

	// Instance is the mDNS instance name
	Instance string `yaml:"Instance" koanf:"Instance"`

	// Debug enables development logging
	Debug bool `yaml:"Debug" koanf:"Debug"`
}

func buildLogger(c Config) (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if c.Debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func openDevice(c Config) (digilent.Device, error) {
	if c.Host != "" {
		user, pass := c.User, c.Pass
		if user == "" {
			user = digilent.DefaultCredentials
		}
		if pass == "" {
			pass = digilent.DefaultCredentials
		}
		return digilent.Open(c.Driver, digilent.Network{Host: c.Host, User: user, Pass: pass})
	}
	return digilent.Open(c.Driver, digilent.Enumeration{Index: c.Index, Config: c.HwConfig})
}

func buildSink(c Config, id digilent.Identity) (bridge.Sink, func() error, error) {
	if c.Record == "" {
		return nil, nil, nil
	}
	f, err := os.Create(c.Record)
	if err != nil {
		return nil, nil, err
	}
	switch strings.ToLower(filepath.Ext(c.Record)) {
	case ".parquet":
		sink := recording.NewParquetSink(f, id)
		return sink, sink.Close, nil
	case ".csv":
		return recording.NewCSVSink(f), f.Close, nil
	default:
		f.Close()
		os.Remove(c.Record)
		return nil, nil, fmt.Errorf("unrecognized recording format %q", filepath.Ext(c.Record))
	}
}

// serve runs the bridge until SIGINT or SIGTERM.
func serve(c Config, log *zap.SugaredLogger) error {
	dev, err := openDevice(c)
	if err != nil {
		return err
	}
	defer dev.Close()
	id := dev.Identity()
	log.Infow("device opened",
		"make", id.Make, "model", id.Model,
		"serial", id.Serial, "firmware", id.Firmware,
		"channels", id.AnalogChannels)

	ctrl := bridge.NewController(dev, log)
	mon := bridge.NewMonitor()
	sink, closeSink, err := buildSink(c, id)
	if err != nil {
		return err
	}
	if closeSink != nil {
		defer closeSink()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if c.MDNS {
		instance := c.Instance
		if instance == "" {
			instance = fmt.Sprintf("%s %s", id.Model, id.Serial)
		}
		_, port := splitPort(c.ControlAddr)
		shutdown, err := discovery.Announce(instance, port, []string{"model=" + id.Model})
		if err != nil {
			log.Errorw("mdns announce failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	if c.HTTPAddr != "" {
		scope := httpapi.NewScope(ctrl, bridge.NewSession(ctrl, log), mon, log)
		hs := &http.Server{Addr: c.HTTPAddr, Handler: scope.Router()}
		go func() {
			<-ctx.Done()
			hs.Close()
		}()
		go func() {
			log.Infow("http interface listening", "addr", c.HTTPAddr)
			if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorw("http server failed", "error", err)
			}
		}()
	}

	srv := &bridge.Server{Ctrl: ctrl, Log: log, Sink: sink, Monitor: mon}
	return srv.ListenAndServe(ctx, c.ControlAddr, c.DataAddr)
}

func splitPort(addr string) (string, int) {
	host := addr
	port := 0
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		host = addr[:i]
		fmt.Sscanf(addr[i+1:], "%d", &port)
	}
	return host, port
}
