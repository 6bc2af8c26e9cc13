// Package digilent defines the capability boundary to the vendor capture
// runtime.  The bridge talks to hardware exclusively through the Device
// interface; concrete drivers bind to the vendor SDK and register
// themselves here.  A simulated device ships in this package so the bridge
// can run and be tested without hardware attached.
package digilent

import (
	"fmt"
	"sort"
	"sync"

	"github.com/benchtop-labs/wfmbridge/oscilloscope"
)

// Identity describes an opened instrument.
type Identity struct {
	Make     string
	Model    string
	Serial   string
	Firmware string

	// AnalogChannels is the number of analog inputs on the device
	AnalogChannels int
}

// Device is a synchronous capability interface over the vendor capture API.
// All calls block until the hardware acknowledges; failures are reported by
// error return, never panics.  Callers are responsible for serializing
// access; implementations are not required to be concurrent safe.
type Device interface {
	// Reset restores the device to its power-on configuration.
	Reset() error

	// Identity reports the identity strings captured at open time.
	Identity() Identity

	// SetChannelEnabled turns acquisition for one analog input on or off.
	SetChannelEnabled(ch int, on bool) error

	// SetChannelCoupling selects the input coupling of one channel.
	SetChannelCoupling(ch int, c oscilloscope.Coupling) error

	// SetChannelRange sets the full scale vertical range in volts.
	SetChannelRange(ch int, volts float64) error

	// SetChannelOffset sets the vertical offset in volts.
	SetChannelOffset(ch int, volts float64) error

	// SetChannelAttenuation sets the probe attenuation factor.
	SetChannelAttenuation(ch int, atten float64) error

	// SetFrequency sets the sample rate in hertz.
	SetFrequency(hz int64) error

	// FrequencyInfo reports the supported sample rate span in hertz.
	FrequencyInfo() (min, max float64, err error)

	// SetBufferSize sets the capture memory depth in samples.
	SetBufferSize(depth int) error

	// BufferSizeInfo reports the supported memory depth span in samples.
	BufferSizeInfo() (min, max int, err error)

	// SetTriggerModeEdge selects simple edge triggering.  It is the only
	// trigger type the bridge drives today.
	SetTriggerModeEdge() error

	// SetTriggerSource selects the analog input the edge detector watches.
	SetTriggerSource(ch int) error

	// SetTriggerLevel sets the edge detector threshold in volts.
	SetTriggerLevel(volts float64) error

	// SetTriggerEdge sets the slope the edge detector fires on.
	SetTriggerEdge(e oscilloscope.EdgeDirection) error

	// SetTriggerPosition requests a trigger position in seconds relative
	// to the midpoint of the capture buffer.  Hardware may round it.
	SetTriggerPosition(sec float64) error

	// TriggerPosition reads back the trigger position actually in effect.
	TriggerPosition() (float64, error)

	// Arm places the device in single acquisition mode and starts the
	// acquisition.
	Arm() error

	// Disarm reconfigures the device without starting an acquisition.
	Disarm() error

	// SamplesLeft reports how many samples remain to be acquired for the
	// acquisition in flight.  Zero means the capture is complete.
	SamplesLeft() (int, error)

	// ReadBuffer copies the acquired record for one channel into dst.
	ReadBuffer(ch int, dst []float64) error

	// Close releases the device handle.
	Close() error
}

// Enumeration opens a locally attached device by its position in the
// vendor enumeration order, using the given hardware configuration slot.
type Enumeration struct {
	Index  int
	Config int
}

// Network opens a device reachable over the network.  The vendor runtime
// ships with a fixed default credential pair which is used when the fields
// are left empty.
type Network struct {
	Host string
	User string
	Pass string
}

// DefaultCredentials is the factory credential pair on networked devices.
const DefaultCredentials = "digilent"

// OpenFunc opens a device from an open-mode descriptor (Enumeration or
// Network).
type OpenFunc func(mode interface{}) (Device, error)

var (
	driversMu sync.Mutex
	drivers   = map[string]OpenFunc{}
)

// RegisterDriver makes a device driver available to Open under a name.
// Drivers bound to the vendor SDK register themselves from an init
// function; the simulator is always registered as "sim".
func RegisterDriver(name string, open OpenFunc) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = open
}

// Drivers lists the registered driver names, sorted.
func Drivers() []string {
	driversMu.Lock()
	defer driversMu.Unlock()
	names := make([]string, 0, len(drivers))
	for k := range drivers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Open opens a device through the named driver.
func Open(driver string, mode interface{}) (Device, error) {
	driversMu.Lock()
	open, ok := drivers[driver]
	driversMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no driver registered under %q (have %v)", driver, Drivers())
	}
	return open(mode)
}
