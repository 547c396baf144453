package sh

import (
	"flag"
	"os"

	"github.com/robotalks/tokenring/pkg/serial"
)

// Config provides options to reach the head node.
type Config struct {
	// Port is the serial port wired to the head's receive line.
	Port     string
	BaudRate int
}

var defaultConfig = Config{
	BaudRate: serial.DefaultBaudRate,
}

func init() {
	if val := os.Getenv("RING_PORT"); val != "" {
		defaultConfig.Port = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Serial port of the head node.")
	flag.IntVar(&defaultConfig.BaudRate, "baud", defaultConfig.BaudRate, "Baud rate.")
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// SerialConfig returns the 8N1 port config.
func (c *Config) SerialConfig(port string) serial.Config {
	conf := serial.DefaultConfig(port)
	if c.BaudRate > 0 {
		conf.BaudRate = c.BaudRate
	}
	return conf
}
