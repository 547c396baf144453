package indicator

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSysfsLED(t *testing.T) {
	root, err := ioutil.TempDir("", "leds")
	require.NoError(t, err)
	defer os.RemoveAll(root)
	require.NoError(t, os.Mkdir(filepath.Join(root, "led0"), 0755))

	led := &SysfsLED{Root: root, Name: "led0"}
	fn := filepath.Join(root, "led0", "brightness")
	require.NoError(t, led.Set(true))
	data, err := ioutil.ReadFile(fn)
	require.NoError(t, err)
	require.Equal(t, "1", string(data))
	require.NoError(t, led.Set(false))
	data, err = ioutil.ReadFile(fn)
	require.NoError(t, err)
	require.Equal(t, "0", string(data))

	require.Error(t, (&SysfsLED{Root: root, Name: "missing"}).Set(true))
}

type recordSetter struct {
	states []bool
	err    error
}

func (r *recordSetter) Set(on bool) error {
	r.states = append(r.states, on)
	return r.err
}

func TestMultiDrivesAll(t *testing.T) {
	failing := &recordSetter{err: errors.New("broken")}
	ok := &recordSetter{}
	m := Multi{failing, ok, &Log{Name: "test"}}
	require.EqualError(t, m.Set(true), "broken")
	require.NoError(t, Multi{ok}.Set(false))
	require.Equal(t, []bool{true}, failing.states)
	require.Equal(t, []bool{true, false}, ok.states)
}
