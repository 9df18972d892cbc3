package device

import (
	"context"
	"scadabridge/pkg/storage"
)

// ActionController is the only way an operator changes the plant.
type ActionController interface {
	Apply(ctx context.Context, deviceKey, actionName string) *Result
	Snapshot() (*storage.Document, error)
	Update(patch []byte) (*storage.Document, error)
}

// Result of one action. Snapshot is the document after the action, also when
// it failed.
type Result struct {
	Success   bool              `json:"success"`
	Reason    string            `json:"reason,omitempty"`
	RequestID string            `json:"requestId"`
	Snapshot  *storage.Document `json:"snapshot,omitempty"`
	Err       error             `json:"-"`
}
