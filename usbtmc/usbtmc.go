// Package usbtmc enumerates USB Test and Measurement Class instruments.
// The bridge drives its instrument through the vendor capture API rather
// than raw USBTMC transfers, so this package only answers "what is
// plugged in", for operator-facing device listings.
package usbtmc

import (
	"fmt"

	"github.com/google/gousb"
)

// USBTMC interface class and subclass, USBTMC standard table 6.
const (
	classApplicationSpecific = gousb.ClassApplicationSpecific
	subclassTMC              = 0x03
)

// Instrument describes one attached USBTMC-capable device.
type Instrument struct {
	Bus     int
	Address int
	VID     gousb.ID
	PID     gousb.ID

	// Manufacturer and Product are the device's string descriptors;
	// either may be empty when the descriptor read fails.
	Manufacturer string
	Product      string
	SerialNumber string
}

func (i Instrument) String() string {
	return fmt.Sprintf("bus %d addr %d %s:%s %s %s (SN %s)",
		i.Bus, i.Address, i.VID, i.PID, i.Manufacturer, i.Product, i.SerialNumber)
}

// tmcCapable reports whether any interface of any configuration declares
// the TMC class/subclass pair.
func tmcCapable(desc *gousb.DeviceDesc) bool {
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == classApplicationSpecific && alt.SubClass == subclassTMC {
					return true
				}
			}
		}
	}
	return false
}

// Enumerate lists every attached USBTMC device.  String descriptors are
// read best effort; a device that cannot be opened still appears with
// its numeric identity.
func Enumerate() ([]Instrument, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var out []Instrument
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return tmcCapable(desc)
	})
	for _, dev := range devs {
		inst := Instrument{
			Bus:     dev.Desc.Bus,
			Address: dev.Desc.Address,
			VID:     dev.Desc.Vendor,
			PID:     dev.Desc.Product,
		}
		if s, serr := dev.Manufacturer(); serr == nil {
			inst.Manufacturer = s
		}
		if s, serr := dev.Product(); serr == nil {
			inst.Product = s
		}
		if s, serr := dev.SerialNumber(); serr == nil {
			inst.SerialNumber = s
		}
		out = append(out, inst)
		dev.Close()
	}
	if err != nil && len(out) == 0 {
		return nil, fmt.Errorf("usb enumeration error: %w", err)
	}
	return out, nil
}
