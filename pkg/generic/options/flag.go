package options

import (
	"fmt"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
	"os"
	"path/filepath"
	"sigs.k8s.io/yaml"
)

const (
	flagConfig        = "config"
	flagHelp          = "help"
	flagDefaultConfig = "default-config"
)

// Optioner is implemented by command options embedding BaseOptions.
type Optioner interface {
	AddFlags(*pflag.FlagSet)
	GetBaseOptions() *BaseOptions
}

type BaseOptions struct {
	ConfigFile string `json:"-"`
	Logging    LoggingConfiguration
}

func NewDefaultBaseOptions() BaseOptions {
	return BaseOptions{
		Logging: NewDefaultLoggingConfiguration(),
	}
}

func (bo *BaseOptions) GetBaseOptions() *BaseOptions {
	return bo
}

func (bo *BaseOptions) AddBaseFlags(cmd *cobra.Command, fs *pflag.FlagSet) {
	bo.addConfigFile(fs)
	bo.Logging.BindLoggingFlags(fs)
	fs.BoolP(flagHelp, "h", false, fmt.Sprintf("help for %s", cmd.Name()))
	fs.Bool(flagDefaultConfig, false, "Print the default configuration as yaml and exit")
	setUsage(cmd, fs)
}

func (bo *BaseOptions) addConfigFile(fs *pflag.FlagSet) {
	fs.StringVarP(&bo.ConfigFile, flagConfig, "c", bo.ConfigFile, "Yaml file the configuration is loaded from, relative paths start at the working directory. Flags given on the command line override it")
}

func (bo *BaseOptions) ValidateAndApply() error {
	return bo.Logging.ValidateAndApply()
}

func requested(fs *pflag.FlagSet, name string) bool {
	v, err := fs.GetBool(name)
	if err != nil {
		klog.ErrorS(err, "Flag is not registered as bool", "flag", name)
		os.Exit(1)
	}
	return v
}

func PrintHelpAndExitIfRequested(cmd *cobra.Command, fs *pflag.FlagSet) {
	if requested(fs, flagHelp) {
		_ = cmd.Help()
		os.Exit(0)
	}
}

func PrintDefaultConfigAndExitIfRequested(config interface{}, fs *pflag.FlagSet) {
	if !requested(fs, flagDefaultConfig) {
		return
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		klog.ErrorS(err, "Failed to marshal default config to yaml")
		os.Exit(1)
	}
	fmt.Println("# Default scadabridge configuration. Copy it and pass the edited file with --config.")
	fmt.Println("# Durations are written like 1s or 500ms. Flags given on the command line override the file.")
	fmt.Printf("\n%s\n", data)
	os.Exit(0)
}

// setUsage prints only fs, cobra's default usage would add its own global flags.
func setUsage(cmd *cobra.Command, fs *pflag.FlagSet) {
	const usageFmt = "Usage:\n  %s\n\nFlags:\n%s"
	cmd.SetUsageFunc(func(cmd *cobra.Command) error {
		_, _ = fmt.Fprintf(cmd.OutOrStderr(), usageFmt, cmd.UseLine(), fs.FlagUsagesWrapped(2))
		return nil
	})
	cmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n"+usageFmt, cmd.Long, cmd.UseLine(), fs.FlagUsagesWrapped(2))
	})
}

// ParseAndApplyConfigFile loads the config file, when one is given, then parses
// args again so that flags win over the file.
func ParseAndApplyConfigFile(o Optioner, args []string) error {
	path := o.GetBaseOptions().ConfigFile
	if len(path) == 0 {
		return nil
	}
	if err := loadConfigFile(o, path); err != nil {
		return err
	}

	fs := pflag.NewFlagSet("", pflag.ContinueOnError)
	o.AddFlags(fs)
	o.GetBaseOptions().addConfigFile(fs)
	o.GetBaseOptions().Logging.BindLoggingFlags(fs)
	// help and default-config were handled before
	fs.ParseErrorsWhitelist.UnknownFlags = true
	return fs.Parse(args)
}

// loadConfigFile rejects unknown keys so a typo does not silently fall back to
// a default.
func loadConfigFile(out Optioner, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "resolve config file %s", path)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return errors.Wrapf(err, "read config file %s", abs)
	}
	if err = yaml.UnmarshalStrict(data, out); err != nil {
		return errors.Wrapf(err, "parse config file %s", abs)
	}
	klog.V(2).InfoS("Loaded config file", "file", abs)
	return nil
}
