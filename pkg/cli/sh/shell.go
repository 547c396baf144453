package sh

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/tokenring/pkg/serial"
)

// Port is the controller side of a serial line.
type Port interface {
	Send(p []byte, maxWait time.Duration) error
	Receive(p []byte, maxWait time.Duration) error
}

// Controller plays the external controller of the chain.
type Controller struct {
	Port        Port
	SendTimeout time.Duration
}

// DefaultStartByte is sent when no start byte is given.
// The head doesn't inspect its value.
const DefaultStartByte byte = 0x01

// Start sends the start byte to the head.
func (c *Controller) Start(b byte) error {
	return c.Port.Send([]byte{b}, c.SendTimeout)
}

// Watch receives n bytes (0 for unlimited) and reports each of them.
// It stops with serial.ErrTimeout if nothing arrives within timeout.
func (c *Controller) Watch(n int, timeout time.Duration, fn func(byte)) error {
	var buf [1]byte
	for i := 0; n <= 0 || i < n; i++ {
		if err := c.Port.Receive(buf[:], timeout); err != nil {
			return err
		}
		fn(buf[0])
	}
	return nil
}

// FormatByte prints a byte as hex with its ASCII form when printable.
func FormatByte(b byte) string {
	if b >= 0x20 && b < 0x7f {
		return fmt.Sprintf("%02x %q", b, rune(b))
	}
	return fmt.Sprintf("%02x", b)
}

// ParseByte parses a byte in decimal or 0x-prefixed hex.
func ParseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte %q", s)
	}
	return byte(v), nil
}

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive  bool
	WatchTimeout time.Duration

	Shell      *ishell.Shell
	Config     *Config
	Controller *Controller

	portName string
	cancel   func()
}

const (
	shellKey       = "$shell"
	unopenedPrompt = "[none] > "
)

var (
	evalOnly bool

	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
		&StartCmd,
		&WatchCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
}

// New creates a new shell.
func New(conf *Config) *Shell {
	s := &Shell{
		Interactive:  !evalOnly,
		WatchTimeout: 5 * time.Second,
		Shell:        ishell.New(),
		Config:       conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unopenedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpened wraps command func requires an opened port.
func MustBeOpened(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Controller == nil {
			c.Err(fmt.Errorf("port not opened"))
			return
		}
		fn(c)
	}
}

// Open opens a serial port and keeps its reader running.
// Received bytes are queued until watched.
func (s *Shell) Open(port string) error {
	stream, err := serial.OpenStream(s.Config.SerialConfig(port))
	if err != nil {
		return err
	}
	s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		stream.Run(ctx)
		stream.Close()
	}()
	s.cancel = cancel
	s.portName = port
	s.Controller = &Controller{Port: stream, SendTimeout: time.Second}
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", port))
	return nil
}

// Close closes the current port.
func (s *Shell) Close() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		s.Controller = nil
		s.Shell.SetPrompt(unopenedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.Config.Port != "" {
		if err := s.Open(s.Config.Port); err != nil {
			log.Fatalln(err)
		}
	}
	defer s.Close()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// OpenCmd opens the head's serial port.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "PORT",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("port expected"))
				return
			}
			if err := ShellFrom(c).Open(c.Args[0]); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes the port.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}

	// StartCmd sends the start byte to the head.
	StartCmd = ishell.Cmd{
		Name:    "start",
		Aliases: []string{"s"},
		Help:    "[BYTE]",
		Func: MustBeOpened(func(c *ishell.Context) {
			b := DefaultStartByte
			if len(c.Args) > 0 {
				var err error
				if b, err = ParseByte(c.Args[0]); err != nil {
					c.Err(err)
					return
				}
			}
			if err := ShellFrom(c).Controller.Start(b); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}

	// WatchCmd prints bytes coming back from the chain.
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "[COUNT]",
		Func: MustBeOpened(func(c *ishell.Context) {
			count := 1
			if len(c.Args) > 0 {
				n, err := strconv.Atoi(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				count = n
			}
			s := ShellFrom(c)
			err := s.Controller.Watch(count, s.WatchTimeout, func(b byte) {
				c.Println(FormatByte(b))
			})
			if err != nil {
				c.Err(err)
			}
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(NewConfig()).Run(flag.Args()...)
}
