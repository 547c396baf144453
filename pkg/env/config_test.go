package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/tokenring/pkg/ring"
)

func TestValidate(t *testing.T) {
	conf := NewConfig()
	conf.Role, conf.Port = "head", "/dev/ttyACM0"
	role, err := conf.Validate()
	require.NoError(t, err)
	require.Equal(t, ring.RoleHead, role)

	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad role", func(c *Config) { c.Role = "tail" }},
		{"no port", func(c *Config) { c.Port = "" }},
		{"token overflow", func(c *Config) { c.Token = 0x100 }},
		{"negative hold", func(c *Config) { c.Hold = -time.Millisecond }},
	}
	for _, tc := range testCases {
		c := *conf
		tc.mutate(&c)
		_, err := c.Validate()
		require.Errorf(t, err, tc.name)
	}
}

func TestMustNewEnvHaltsOnDeviceFailure(t *testing.T) {
	conf := NewConfig()
	conf.Port = "/nonexistent/ttyRING0"
	var halted error
	env := conf.MustNewEnv(ring.HaltFunc(func(err error) { halted = err }))
	require.Nil(t, env)
	require.Error(t, halted)
}

func TestMustNewEnvFailsOnBadConfig(t *testing.T) {
	var fatal []interface{}
	defer func(fn func(...interface{})) { fatalln = fn }(fatalln)
	fatalln = func(v ...interface{}) { fatal = v }

	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no port", func(c *Config) { c.Port = "" }},
		{"bad role", func(c *Config) { c.Port, c.Role = "/dev/ttyACM0", "tail" }},
	}
	for _, tc := range testCases {
		fatal = nil
		conf := NewConfig()
		tc.mutate(conf)
		env := conf.MustNewEnv(ring.HaltFunc(func(err error) {
			t.Fatalf("%s: halted: %v", tc.name, err)
		}))
		require.Nil(t, env, tc.name)
		require.Len(t, fatal, 1, tc.name)
	}
}

func TestSerialConfig(t *testing.T) {
	conf := NewConfig()
	sc := conf.SerialConfig("/dev/ttyUSB1")
	require.Equal(t, "/dev/ttyUSB1", sc.Address)
	require.Equal(t, 115200, sc.BaudRate)
	require.Equal(t, 8, sc.DataBits)
	require.Equal(t, 1, sc.StopBits)
	require.Equal(t, "N", sc.Parity)
}
