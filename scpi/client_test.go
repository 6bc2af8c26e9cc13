package scpi_test

import (
	"net"
	"testing"

	"github.com/benchtop-labs/wfmbridge/bridge"
	"github.com/benchtop-labs/wfmbridge/digilent"
	"github.com/benchtop-labs/wfmbridge/scpi"
)

// startBridge serves control plane sessions on a loopback listener.
func startBridge(t *testing.T) (string, *bridge.Controller) {
	t.Helper()
	ctrl := bridge.NewController(digilent.NewSim(digilent.SimConfig{Instant: true}), nil)
	if err := ctrl.Reset(); err != nil {
		t.Fatal(err)
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				bridge.NewSession(ctrl, nil).Serve(conn)
			}()
		}
	}()
	return l.Addr().String(), ctrl
}

func TestClientQueries(t *testing.T) {
	addr, _ := startBridge(t)
	client := scpi.NewClient(addr)

	idn, err := client.Query("*IDN?")
	if err != nil {
		t.Fatal(err)
	}
	if idn != "Digilent,Simulated ADP3450,SIM000001,0.0" {
		t.Errorf("*IDN? = %q", idn)
	}

	n, err := client.QueryInt("CHANS?")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("CHANS? = %d, want 2", n)
	}

	rates, err := client.QueryInts("RATES?")
	if err != nil {
		t.Fatal(err)
	}
	if len(rates) != 18 {
		t.Errorf("RATES? returned %d entries, want 18", len(rates))
	}
}

func TestClientSendMutates(t *testing.T) {
	addr, ctrl := startBridge(t)
	client := scpi.NewClient(addr)

	if err := client.Send("C1:ON"); err != nil {
		t.Fatal(err)
	}
	// follow with a query on the same session so the send has landed
	if _, err := client.Query("CHANS?"); err != nil {
		t.Fatal(err)
	}
	if !ctrl.View().Channels[0].Enabled {
		t.Error("C1:ON was not applied")
	}
}

func TestClientRejectsNonQuery(t *testing.T) {
	addr, _ := startBridge(t)
	client := scpi.NewClient(addr)
	if _, err := client.Query("START"); err == nil {
		t.Error("expected an error querying a non-query")
	}
}

func TestClientRaw(t *testing.T) {
	addr, _ := startBridge(t)
	client := scpi.NewClient(addr)

	resp, err := client.Raw("DEPTHS?")
	if err != nil {
		t.Fatal(err)
	}
	if resp != "65536" {
		t.Errorf("DEPTHS? = %q, want 65536", resp)
	}
	resp, err = client.Raw("STOP")
	if err != nil || resp != "" {
		t.Errorf("raw non-query: resp=%q err=%v", resp, err)
	}
}
