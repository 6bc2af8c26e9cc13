// Command wfmctl drives a running wfmbridge from the shell: identity and
// capability queries, raw command passthrough, mDNS discovery, and a
// one-shot waveform acquisition to CSV.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/theckman/yacspin"

	"github.com/benchtop-labs/wfmbridge/bridge"
	"github.com/benchtop-labs/wfmbridge/discovery"
	"github.com/benchtop-labs/wfmbridge/scpi"
)

func root() {
	str := `wfmctl is the command line client for wfmbridge.

Usage:
	wfmctl [-addr host:port] <command>

Commands:
	idn
	chans
	rates
	depths
	send <line>
	query <line>
	discover
	acquire [-data host:port] [-out file.csv] [-chan n] [-count k]`
	fmt.Println(str)
}

func main() {
	addr := flag.String("addr", "localhost:5025", "control plane address")
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		root()
		return
	}

	client := scpi.NewClient(*addr)
	switch strings.ToLower(args[0]) {
	case "idn":
		mustQuery(client, "*IDN?")
	case "chans":
		mustQuery(client, "CHANS?")
	case "rates":
		mustQuery(client, "RATES?")
	case "depths":
		mustQuery(client, "DEPTHS?")
	case "send":
		if len(args) < 2 {
			log.Fatal("send requires a command line")
		}
		if err := client.Send(strings.Join(args[1:], " ")); err != nil {
			log.Fatal(err)
		}
	case "query":
		if len(args) < 2 {
			log.Fatal("query requires a command line")
		}
		mustQuery(client, strings.Join(args[1:], " "))
	case "discover":
		discover()
	case "acquire":
		acquire(client, *addr, args[1:])
	default:
		root()
	}
}

func mustQuery(c *scpi.Client, q string) {
	resp, err := c.Query(q)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(resp)
}

func discover() {
	bridges, err := discovery.Discover(3 * time.Second)
	if err != nil {
		log.Fatal(err)
	}
	if len(bridges) == 0 {
		fmt.Println("no bridges found")
		return
	}
	for _, b := range bridges {
		fmt.Printf("%s %s port %d %v\n", b.Instance, b.Hostname, b.Port, b.Addresses)
	}
}

// acquire arms a single capture and pulls the resulting frame off the
// data plane.
func acquire(client *scpi.Client, ctrlAddr string, args []string) {
	fs := flag.NewFlagSet("acquire", flag.ExitOnError)
	dataAddr := fs.String("data", "", "data plane address (default control host, port+1)")
	out := fs.String("out", "", "write samples to this CSV file instead of a summary")
	channel := fs.Int("chan", 1, "channel to enable, 1-indexed")
	count := fs.Int("count", 1, "number of captures to pull")
	fs.Parse(args)

	if *dataAddr == "" {
		host, portStr, err := net.SplitHostPort(ctrlAddr)
		if err != nil {
			log.Fatal(err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			log.Fatal(err)
		}
		*dataAddr = net.JoinHostPort(host, strconv.Itoa(port+1))
	}

	conn, err := net.DialTimeout("tcp", *dataAddr, 5*time.Second)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	chCmd := fmt.Sprintf("C%d:ON", *channel)
	for _, cmd := range []string{chCmd, "START"} {
		if err := client.Send(cmd); err != nil {
			log.Fatal(err)
		}
	}
	defer client.Send("STOP")

	spinner, err := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[59],
		Suffix:          " acquiring",
		SuffixAutoColon: true,
		StopCharacter:   "done",
	})
	if err != nil {
		log.Fatal(err)
	}
	spinner.Start()

	var w *os.File
	if *out != "" {
		w, err = os.Create(*out)
		if err != nil {
			spinner.StopFail()
			log.Fatal(err)
		}
		defer w.Close()
	}

	for i := 0; i < *count; i++ {
		capt, err := bridge.DecodeFrame(conn)
		if err != nil {
			spinner.StopFail()
			log.Fatal(err)
		}
		spinner.Message(fmt.Sprintf("capture %d of %d", i+1, *count))
		if w != nil {
			if err := capt.EncodeCSV(w); err != nil {
				spinner.StopFail()
				log.Fatal(err)
			}
			continue
		}
		for _, ch := range capt.Channels {
			fmt.Printf("\ncapture %d channel %d: %d samples, interval %d fs, trigger phase %g fs\n",
				i+1, ch.Index, len(ch.Samples), capt.SampleIntervalFs, capt.TriggerPhaseFs)
		}
	}
	spinner.Stop()
}
