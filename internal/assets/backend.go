package assets

import (
	"context"
	"time"
)

// Object describes one stored object in a namespace.
type Object struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Backend is the object storage provider. Names are flat within a namespace.
type Backend interface {
	List(ctx context.Context, namespace string) ([]Object, error)
	Delete(ctx context.Context, namespace string, names ...string) error
	Put(ctx context.Context, namespace, name string, data []byte) error
	Open(ctx context.Context, namespace, name string) ([]byte, Object, error)
}
