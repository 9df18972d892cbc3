package options

import (
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

type testOptions struct {
	Port string `json:"port"`
	Name string `json:"name"`
	BaseOptions
}

func (o *testOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Port, "port", o.Port, "")
	fs.StringVar(&o.Name, "name", o.Name, "")
}

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := writeConfig(t, "port: \"6000\"\nname: line-a\n")
	o := &testOptions{Port: "5000", BaseOptions: NewDefaultBaseOptions()}
	o.ConfigFile = path

	args := []string{"--config", path, "--name", "line-b", "--version"}
	require.NoError(t, ParseAndApplyConfigFile(o, args))
	assert.Equal(t, "6000", o.Port)
	assert.Equal(t, "line-b", o.Name)
}

func TestConfigFileRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "prot: \"6000\"\n")
	o := &testOptions{BaseOptions: NewDefaultBaseOptions()}
	o.ConfigFile = path
	assert.Error(t, ParseAndApplyConfigFile(o, nil))
}

func TestNoConfigFile(t *testing.T) {
	o := &testOptions{Port: "5000", BaseOptions: NewDefaultBaseOptions()}
	require.NoError(t, ParseAndApplyConfigFile(o, []string{"--port", "1"}))
	assert.Equal(t, "5000", o.Port)
}

func TestLoggingConfigurationRoundTrip(t *testing.T) {
	l := NewDefaultLoggingConfiguration()
	data, err := l.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"format":"text","verbosity":2}`, string(data))

	out := LoggingConfiguration{}
	require.NoError(t, out.UnmarshalJSON([]byte(`{"format":"json","verbosity":4}`)))
	assert.Equal(t, "json", out.Format)
	assert.EqualValues(t, 4, out.Verbosity)
}
