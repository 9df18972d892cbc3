package device

import (
	"context"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"scadabridge/pkg/apis"
	"scadabridge/pkg/apis/response"
	"scadabridge/pkg/broker"
	"scadabridge/pkg/controller"
	"scadabridge/pkg/protocol/s7"
	"scadabridge/pkg/runtime/constant"
	"scadabridge/pkg/storage"
	"scadabridge/pkg/utils/uuidutil"
)

type Option func(*Manager)

func WithPublisher(publisher broker.Publisher) Option {
	return func(m *Manager) {
		m.publisher = publisher
	}
}

// Manager turns operator actions into register writes. The document is read
// right before deciding and saved right after writing, so a poll tick saving
// in between can be overwritten: last save wins.
type Manager struct {
	registry  *s7.Registry
	store     storage.StateStore
	publisher broker.Publisher
}

var _ ActionController = (*Manager)(nil)

func NewManager(registry *s7.Registry, store storage.StateStore, opts ...Option) *Manager {
	m := &Manager{
		registry:  registry,
		store:     store,
		publisher: broker.NopPublisher{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Snapshot() (*storage.Document, error) {
	return m.store.Load()
}

// Update merges a partial document sent by the front end.
func (m *Manager) Update(patch []byte) (*storage.Document, error) {
	doc, err := m.store.Merge(patch)
	if err != nil {
		if errors.Is(err, apis.ErrInvalidValue) {
			return nil, response.ErrInvalidUpdate(err)
		}
		return nil, response.ErrStateStore(err)
	}
	m.publisher.Publish(doc)
	return doc, nil
}

func (m *Manager) Apply(ctx context.Context, deviceKey, actionName string) *Result {
	result := &Result{RequestID: uuidutil.RequestID()}
	ctx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	ctrl, err := controller.Lookup(deviceKey)
	if err != nil {
		return m.reject(result, deviceKey, actionName, response.ErrUnknownDevice(deviceKey, err))
	}
	action, err := controller.ParseAction(actionName)
	if err != nil {
		return m.reject(result, deviceKey, actionName, response.ErrUnknownAction(actionName, err))
	}
	client, err := m.registry.ForUnit(ctrl.Unit())
	if err != nil {
		return m.reject(result, deviceKey, actionName, response.ErrUnknownDevice(deviceKey, err))
	}

	doc, err := m.store.Load()
	if err != nil {
		return m.reject(result, deviceKey, actionName, response.ErrStateStore(err))
	}
	runErr := controller.Run(ctx, ctrl, client, doc, action)
	if err = m.store.Save(doc); err != nil {
		klog.ErrorS(err, "Failed to save state after action", "requestId", result.RequestID, "unit", ctrl.Unit())
		if runErr == nil {
			runErr = err
		}
	} else {
		m.publisher.Publish(doc)
	}
	result.Snapshot = doc

	if runErr != nil {
		result.Err = describe(runErr, ctrl, actionName)
		result.Reason = response.Message(result.Err)
		klog.V(2).InfoS("Action failed", "requestId", result.RequestID, "device", client.Device.Name, "unit", ctrl.Unit(), "action", action, "err", runErr)
		return result
	}
	result.Success = true
	klog.V(2).InfoS("Action applied", "requestId", result.RequestID, "device", client.Device.Name, "unit", ctrl.Unit(), "action", action)
	return result
}

// reject audits a request that never reached a device.
func (m *Manager) reject(result *Result, deviceKey, actionName string, err error) *Result {
	reason := response.Message(err)
	klog.V(2).InfoS("Action rejected", "requestId", result.RequestID, "device", deviceKey, "action", actionName, "err", errors.Cause(err))
	result.Err = err
	result.Reason = reason

	doc, uerr := m.store.Update(func(doc *storage.Document) error {
		doc.AppendLog("ERROR: " + reason)
		return nil
	})
	if uerr != nil {
		klog.ErrorS(uerr, "Failed to audit rejected action", "requestId", result.RequestID)
		return result
	}
	m.publisher.Publish(doc)
	result.Snapshot = doc
	return result
}

func describe(err error, ctrl controller.Controller, actionName string) error {
	label := ctrl.Label()
	switch {
	case errors.Is(err, constant.ErrUnknownAction):
		return response.ErrUnknownAction(actionName, err)
	case errors.Is(err, constant.ErrNotReady):
		return response.ErrNotReady(label, actionName, err)
	case errors.Is(err, constant.ErrReadOnlyWrite):
		return response.ErrReadOnlyWrite(label, err)
	case errors.Is(err, constant.ErrDeviceUnavailable):
		return response.ErrDeviceUnavailable(label, err)
	case errors.Is(err, constant.ErrConnection),
		errors.Is(err, constant.ErrIOTimeout),
		errors.Is(err, constant.ErrProtocol),
		errors.Is(err, constant.ErrVariableNotFound),
		errors.Is(err, constant.ErrInvalidValue):
		return response.ErrDeviceIO(label, err)
	}
	return response.ErrStateStore(err)
}
