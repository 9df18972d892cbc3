package options

import (
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"
	"scadabridge/cmd/bridge/config"
	"scadabridge/pkg/broker"
	"scadabridge/pkg/collector"
	"scadabridge/pkg/device"
	baseoptions "scadabridge/pkg/generic/options"
	"scadabridge/pkg/protocol/s7"
	s7runtime "scadabridge/pkg/protocol/s7/runtime"
	"scadabridge/pkg/storage"
	"time"
)

type Options struct {
	Port         string                `json:"port"`
	Wait         metav1.Duration       `json:"graceful-timeout"`
	StateFile    string                `json:"state-file"`
	PollInterval metav1.Duration       `json:"poll-interval"`
	ErrorBackoff metav1.Duration       `json:"error-backoff"`
	IOTimeout    metav1.Duration       `json:"io-timeout"`
	CertFile     string                `json:"cert-file"`
	KeyFile      string                `json:"key-file"`
	MQTT         broker.Options        `json:"mqtt"`
	Devices      []*s7runtime.S7Device `json:"devices"`
	baseoptions.BaseOptions
}

const (
	_defaultPort         = "5000"
	_defaultWait         = 15 * time.Second
	_defaultPollInterval = time.Second
	_defaultErrorBackoff = 5 * time.Second
	_defaultIOTimeout    = 2 * time.Second
)

func NewDefaultOptions() *Options {
	return &Options{
		Port:         _defaultPort,
		Wait:         metav1.Duration{Duration: _defaultWait},
		StateFile:    storage.DefaultStatePath(),
		PollInterval: metav1.Duration{Duration: _defaultPollInterval},
		ErrorBackoff: metav1.Duration{Duration: _defaultErrorBackoff},
		IOTimeout:    metav1.Duration{Duration: _defaultIOTimeout},
		MQTT:         broker.NewDefaultOptions(),
		BaseOptions:  baseoptions.NewDefaultBaseOptions(),
	}
}

// Complete fills in the plant wiring when the config file lists no device.
// Devices are not defaulted up front since decoding a list into the default
// one would mix both.
func (o *Options) Complete() *Options {
	if len(o.Devices) == 0 {
		o.Devices = s7.DefaultDevices()
	}
	return o
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Port, "port", "P", o.Port, "Port exposed")
	fs.DurationVar(&o.Wait.Duration, "graceful-timeout", o.Wait.Duration, "The duration for which the server gracefully wait for existing connections to finish - e.g. 15s or 1m")
	fs.StringVar(&o.StateFile, "state-file", o.StateFile, "Path of the shared state document")
	fs.DurationVar(&o.PollInterval.Duration, "poll-interval", o.PollInterval.Duration, "Interval between two polls of the devices")
	fs.DurationVar(&o.ErrorBackoff.Duration, "error-backoff", o.ErrorBackoff.Duration, "Pause after a failed poll before the next one")
	fs.DurationVar(&o.IOTimeout.Duration, "io-timeout", o.IOTimeout.Duration, "Timeout of a single connect, read or write on a device")
	fs.StringVar(&o.CertFile, "cert-file", o.CertFile, "TLS certificate, HTTPS is served when both cert-file and key-file are set")
	fs.StringVar(&o.KeyFile, "key-file", o.KeyFile, "TLS private key")
	fs.StringVar(&o.MQTT.Broker, "mqtt-broker", o.MQTT.Broker, "MQTT broker url, e.g. tcp://127.0.0.1:1883. Snapshots are not published when empty")
	fs.StringVar(&o.MQTT.Topic, "mqtt-topic", o.MQTT.Topic, "MQTT topic snapshots are published to")
	fs.StringVar(&o.MQTT.ClientID, "mqtt-client-id", o.MQTT.ClientID, "MQTT client id, generated when empty")
	fs.StringVar(&o.MQTT.Username, "mqtt-username", o.MQTT.Username, "MQTT username")
	fs.StringVar(&o.MQTT.Password, "mqtt-password", o.MQTT.Password, "MQTT password")
}

func (o *Options) Config() (*config.Config, error) {
	store, err := storage.NewFsStore(o.StateFile)
	if err != nil {
		return nil, err
	}
	// 启动时修复或创建状态文件
	if _, err = store.Load(); err != nil {
		return nil, errors.Wrap(err, "load state document")
	}
	klog.V(1).InfoS("Using state document", "path", store.Path())

	registry, err := s7.NewRegistry(o.Devices, o.IOTimeout.Duration)
	if err != nil {
		return nil, err
	}

	publisher, err := broker.NewPublisher(&o.MQTT)
	if err != nil {
		return nil, err
	}

	c := &config.Config{
		Poller: collector.NewPoller(registry, store,
			collector.WithInterval(o.PollInterval.Duration),
			collector.WithErrorBackoff(o.ErrorBackoff.Duration),
			collector.WithPublisher(publisher),
		),
		ActionMgr: device.NewManager(registry, store, device.WithPublisher(publisher)),
		Publisher: publisher,
		CertFile:  o.CertFile,
		KeyFile:   o.KeyFile,
	}
	return c, nil
}
