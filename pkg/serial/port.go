package serial

import (
	"fmt"
	"time"

	goserial "github.com/goburrow/serial"
)

// Default line settings.
const (
	DefaultBaudRate = 115200
	DefaultDataBits = 8
	DefaultStopBits = 1
	DefaultParity   = "N"
)

// Config defines a serial port.
type Config struct {
	Address  string
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
	// ReadTimeout bounds each Read so the reader loop can observe
	// cancellation. Zero means Read blocks.
	ReadTimeout time.Duration
}

// DefaultConfig returns 115200 8N1 for the given port address.
func DefaultConfig(address string) Config {
	return Config{
		Address:     address,
		BaudRate:    DefaultBaudRate,
		DataBits:    DefaultDataBits,
		StopBits:    DefaultStopBits,
		Parity:      DefaultParity,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// Open opens the port and wraps it with a Channel.
func Open(conf Config) (*Channel, error) {
	port, err := openPort(conf)
	if err != nil {
		return nil, err
	}
	ch := NewChannel(port)
	ch.Name = conf.Address
	ch.ReadTimeout = conf.ReadTimeout > 0
	return ch, nil
}

// OpenStream opens the port and wraps it with a Stream.
func OpenStream(conf Config) (*Stream, error) {
	port, err := openPort(conf)
	if err != nil {
		return nil, err
	}
	s := NewStream(port)
	s.Name = conf.Address
	s.ReadTimeout = conf.ReadTimeout > 0
	return s, nil
}

func openPort(conf Config) (goserial.Port, error) {
	if conf.Address == "" {
		return nil, fmt.Errorf("serial port address required")
	}
	port, err := goserial.Open(&goserial.Config{
		Address:  conf.Address,
		BaudRate: conf.BaudRate,
		DataBits: conf.DataBits,
		StopBits: conf.StopBits,
		Parity:   conf.Parity,
		Timeout:  conf.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %v", conf.Address, err)
	}
	return port, nil
}

func isTimeout(err error) bool {
	if err == goserial.ErrTimeout {
		return true
	}
	if t, ok := err.(interface{ Timeout() bool }); ok {
		return t.Timeout()
	}
	return false
}
