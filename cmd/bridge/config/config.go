package config

import (
	"scadabridge/pkg/broker"
	"scadabridge/pkg/collector"
	"scadabridge/pkg/device"
)

type Config struct {
	ActionMgr *device.Manager
	Poller    *collector.Poller
	Publisher broker.Publisher
	CertFile  string
	KeyFile   string
}
