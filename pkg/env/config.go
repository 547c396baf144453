package env

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/tokenring/pkg/framework"
	"github.com/robotalks/tokenring/pkg/indicator"
	"github.com/robotalks/tokenring/pkg/ring"
	"github.com/robotalks/tokenring/pkg/serial"
	"github.com/robotalks/tokenring/pkg/telemetry"
	"github.com/robotalks/tokenring/pkg/telemetry/mqtt"
)

// Config provides options to set up a relay node.
type Config struct {
	ID       string
	Role     string
	Port     string
	BaudRate int
	Token    uint
	Hold     time.Duration
	// LED is the name of an LED class device, empty to log only.
	LED string
	// ConsolePort optionally takes the head notification off the chain.
	ConsolePort string
	// MQTTBrokerURL enables telemetry, e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string
}

var defaultConfig = Config{
	Role:     ring.RoleRelay.String(),
	BaudRate: serial.DefaultBaudRate,
	Token:    uint(ring.DefaultToken),
	Hold:     ring.DefaultHold,
}

func init() {
	if val := os.Getenv("RING_ROLE"); val != "" {
		defaultConfig.Role = val
	}
	if val := os.Getenv("RING_PORT"); val != "" {
		defaultConfig.Port = val
	}
	if val := os.Getenv("RING_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("RING_ID"); val != "" {
		defaultConfig.ID = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.ID, "id", defaultConfig.ID, "Node ID, defaults to machine ID.")
	flag.StringVar(&defaultConfig.Role, "role", defaultConfig.Role, "Node role: head or relay.")
	flag.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Serial port of the chain link.")
	flag.IntVar(&defaultConfig.BaudRate, "baud", defaultConfig.BaudRate, "Baud rate.")
	flag.UintVar(&defaultConfig.Token, "token", defaultConfig.Token, "Token byte sent by head.")
	flag.DurationVar(&defaultConfig.Hold, "hold", defaultConfig.Hold, "Indicator hold time per reception.")
	flag.StringVar(&defaultConfig.LED, "led", defaultConfig.LED, "LED class device name under "+indicator.DefaultLEDRoot+".")
	flag.StringVar(&defaultConfig.ConsolePort, "console", defaultConfig.ConsolePort, "Separate serial port for head notification.")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL for telemetry.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Validate checks the config without touching any device.
func (c *Config) Validate() (ring.Role, error) {
	role, err := ring.ParseRole(c.Role)
	if err != nil {
		return role, err
	}
	if c.Port == "" {
		return role, fmt.Errorf("serial port must be specified")
	}
	if c.Token > 0xff {
		return role, fmt.Errorf("token %#x is not a byte", c.Token)
	}
	if c.Hold < 0 {
		return role, fmt.Errorf("hold must not be negative")
	}
	return role, nil
}

// Env is a wired node with its devices.
type Env struct {
	Config    *Config
	Node      *ring.Node
	Channel   *serial.Channel
	Console   *serial.Channel
	Publisher *mqtt.Publisher
}

// NewEnv opens devices and creates the node.
func (c *Config) NewEnv() (*Env, error) {
	role, err := c.Validate()
	if err != nil {
		return nil, err
	}
	id := c.ID
	if id == "" {
		id = NodeID()
	}
	e := &Env{Config: c}
	if e.Channel, err = serial.Open(c.SerialConfig(c.Port)); err != nil {
		return nil, err
	}
	e.Node = ring.NewNode(role, e.Channel)
	e.Node.ID = id
	e.Node.Token = ring.Token(c.Token)
	e.Node.Hold = c.Hold

	leds := indicator.Multi{&indicator.Log{Name: id}}
	if c.LED != "" {
		leds = append(leds, indicator.NewSysfsLED(c.LED))
	}
	e.Node.Indicator = leds

	observers := telemetry.Observers{telemetry.Log}
	if c.MQTTBrokerURL != "" {
		meta := mqtt.NodeMeta{Role: role.String()}
		if role == ring.RoleHead {
			meta.Token = byte(c.Token)
		}
		if e.Publisher, err = mqtt.NewPublisher(c.MQTTBrokerURL, id, meta); err != nil {
			e.Close()
			return nil, fmt.Errorf("create MQTT publisher error: %v", err)
		}
		observers = append(observers, e.Publisher)
	}
	e.Node.Observer = observers

	if c.ConsolePort != "" && role == ring.RoleHead {
		if e.Console, err = serial.Open(c.SerialConfig(c.ConsolePort)); err != nil {
			e.Close()
			return nil, err
		}
		e.Node.Console = e.Console
	}
	return e, nil
}

// SerialConfig returns the 8N1 config of a port.
func (c *Config) SerialConfig(port string) serial.Config {
	conf := serial.DefaultConfig(port)
	if c.BaudRate > 0 {
		conf.BaudRate = c.BaudRate
	}
	return conf
}

// fatalln reports configuration errors.
var fatalln = log.Fatalln

// MustNewEnv creates Env. An invalid config is fatal to the process,
// device initialization failures go to halter.
func (c *Config) MustNewEnv(halter ring.Halter) *Env {
	if _, err := c.Validate(); err != nil {
		fatalln(err)
		return nil
	}
	e, err := c.NewEnv()
	if err != nil {
		halter.Halt(err)
	}
	return e
}

// AddToRunner implements RunnerAdder.
func (e *Env) AddToRunner(r *fx.Runner) {
	r.Add(e.Channel)
	if e.Publisher != nil {
		r.Add(e.Publisher)
	}
	r.Add(e.Node)
	glog.Infof("node %s (%s) on %s", e.Node.ID, e.Node.Role, e.Config.Port)
}

// Close releases devices.
func (e *Env) Close() error {
	var errs fx.AggregatedError
	if e.Channel != nil {
		errs.Add(e.Channel.Close())
	}
	if e.Console != nil {
		errs.Add(e.Console.Close())
	}
	return errs.Aggregate()
}
