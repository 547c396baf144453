// Package indicator provides feedback outputs for relay nodes.
package indicator

import (
	"fmt"
	"io/ioutil"
	"path/filepath"

	"github.com/golang/glog"
)

// Log reports indicator transitions through glog.
type Log struct {
	Name string
}

// Set implements ring.Indicator.
func (l *Log) Set(on bool) error {
	if on {
		glog.Infof("%s: ON", l.Name)
	} else {
		glog.Infof("%s: OFF", l.Name)
	}
	return nil
}

// DefaultLEDRoot is where the kernel exposes LED class devices.
const DefaultLEDRoot = "/sys/class/leds"

// SysfsLED drives an LED class device, e.g. /sys/class/leds/led0.
type SysfsLED struct {
	Root string
	Name string
}

// NewSysfsLED creates a SysfsLED under DefaultLEDRoot.
func NewSysfsLED(name string) *SysfsLED {
	return &SysfsLED{Root: DefaultLEDRoot, Name: name}
}

// Set implements ring.Indicator.
func (l *SysfsLED) Set(on bool) error {
	val := []byte("0")
	if on {
		val = []byte("1")
	}
	fn := filepath.Join(l.Root, l.Name, "brightness")
	if err := ioutil.WriteFile(fn, val, 0644); err != nil {
		return fmt.Errorf("led %s: %v", l.Name, err)
	}
	return nil
}

// Setter is the interface implemented by all indicators.
type Setter interface {
	Set(on bool) error
}

// Multi drives all indicators and returns the first error.
type Multi []Setter

// Set implements ring.Indicator.
func (m Multi) Set(on bool) (err error) {
	for _, s := range m {
		if e := s.Set(on); e != nil && err == nil {
			err = e
		}
	}
	return
}
