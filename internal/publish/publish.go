// Package publish implements the Publisher Fan-out (spec.md §4.9): one
// Publisher per configured platform, each rendering a BlogPost into a
// platform-specific payload and delivering it, following the teacher's
// pattern of small typed clients wrapping an *http.Client with a fixed
// timeout (tools/remote_client.go's HTTPRemoteCaller).
package publish

import (
	"context"
	"time"

	"github.com/aschepis/distill/internal/model"
)

// Payload is a platform's rendered form of a BlogPost, ready to deliver.
type Payload struct {
	Platform    string
	Body        []byte
	ContentType string
	Metadata    map[string]string
}

// Receipt records the outcome of a Deliver call.
type Receipt struct {
	Platform    string
	Delivered   bool
	ExternalID  string
	DeliveredAt time.Time
	Err         error
}

// Publisher is the platform contract from spec.md §4.9: render, then
// deliver. Implementations must not share state across platforms (§5).
type Publisher interface {
	Name() string
	Render(post model.BlogPost) (Payload, error)
	Deliver(ctx context.Context, payload Payload) (Receipt, error)
}
