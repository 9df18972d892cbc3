package broker

import (
	"encoding/json"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"scadabridge/pkg/storage"
	"scadabridge/pkg/utils/uuidutil"
	"time"
)

const (
	DefaultTopic = "scadabridge/state"

	mqttTimeout           = 1 * time.Second
	mqttConnectTimeout    = 10 * time.Second
	mqttKeepAlive         = 60 * time.Second
	mqttMaxReconnect      = 30 * time.Second
	mqttDisconnectQuiesce = 2000
)

// Publisher pushes every persisted snapshot to downstream consumers.
type Publisher interface {
	Publish(doc *storage.Document)
	Close()
}

type Options struct {
	// 为空则不推送
	Broker   string `json:"broker"`
	ClientID string `json:"client-id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Topic    string `json:"topic"`
	QoS      byte   `json:"qos"`
	Retained bool   `json:"retained"`
}

func NewDefaultOptions() Options {
	return Options{
		Topic:    DefaultTopic,
		QoS:      1,
		Retained: true,
	}
}

func (o *Options) Enabled() bool {
	return len(o.Broker) > 0
}

// NewPublisher returns a no-op publisher when no broker is configured.
func NewPublisher(o *Options) (Publisher, error) {
	if o == nil || !o.Enabled() {
		return NopPublisher{}, nil
	}
	return NewMQTTPublisher(o)
}

type NopPublisher struct{}

func (NopPublisher) Publish(*storage.Document) {}

func (NopPublisher) Close() {}

type MQTTPublisher struct {
	client   mqtt.Client
	topic    string
	qos      byte
	retained bool
}

// NewMQTTPublisher connects to the broker. A broker that is down at startup is
// not fatal, paho keeps retrying in the background.
func NewMQTTPublisher(o *Options) (*MQTTPublisher, error) {
	client := mqtt.NewClient(buildClientOptions(o))
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		klog.V(1).InfoS("MQTT broker not reachable yet, retrying in background", "broker", o.Broker)
	} else if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "connect mqtt broker %s", o.Broker)
	}
	return newMQTTPublisher(client, o), nil
}

func newMQTTPublisher(client mqtt.Client, o *Options) *MQTTPublisher {
	topic := o.Topic
	if len(topic) == 0 {
		topic = DefaultTopic
	}
	return &MQTTPublisher{
		client:   client,
		topic:    topic,
		qos:      o.QoS,
		retained: o.Retained,
	}
}

func buildClientOptions(o *Options) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	clientID := o.ClientID
	if len(clientID) == 0 {
		clientID = "scadabridge-" + uuidutil.ShortUUID()
	}
	opts.SetClientID(clientID)
	if len(o.Username) > 0 {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetMaxReconnectInterval(mqttMaxReconnect)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetKeepAlive(mqttKeepAlive)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		klog.V(1).InfoS("Lost MQTT connection", "broker", o.Broker, "err", err)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		klog.V(1).InfoS("Connected to MQTT broker", "broker", o.Broker)
	})
	return opts
}

func (p *MQTTPublisher) Publish(doc *storage.Document) {
	payload, err := json.Marshal(doc)
	if err != nil {
		klog.ErrorS(err, "Failed to marshal snapshot")
		return
	}
	token := p.client.Publish(p.topic, p.qos, p.retained, payload)
	if token.WaitTimeout(mqttTimeout) && token.Error() == nil {
		klog.V(5).InfoS("Succeed to publish MQTT", "topic", p.topic)
	} else {
		klog.V(1).InfoS("Failed to publish MQTT", "topic", p.topic, "err", token.Error())
	}
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(mqttDisconnectQuiesce)
}
