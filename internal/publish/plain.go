package publish

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aschepis/distill/internal/memory"
	"github.com/aschepis/distill/internal/model"
)

// PlainPublisher renders a bare markdown file with no wiki-links or
// platform-specific conventions — the lowest-common-denominator dialect
// for mirroring to a generic static-site content directory.
type PlainPublisher struct {
	Dir string
}

func NewPlainPublisher(dir string) *PlainPublisher {
	return &PlainPublisher{Dir: dir}
}

func (p *PlainPublisher) Name() string { return "plain" }

func (p *PlainPublisher) Render(post model.BlogPost) (Payload, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", post.Title)
	sb.WriteString(post.BodyMarkdown)
	return Payload{
		Platform:    p.Name(),
		Body:        []byte(sb.String()),
		ContentType: "text/markdown",
		Metadata:    map[string]string{"slug": post.Slug},
	}, nil
}

func (p *PlainPublisher) Deliver(ctx context.Context, payload Payload) (Receipt, error) {
	select {
	case <-ctx.Done():
		return Receipt{Platform: p.Name(), Err: ctx.Err()}, ctx.Err()
	default:
	}
	path := filepath.Join(p.Dir, "blog", p.Name(), payload.Metadata["slug"]+".md")
	if err := memory.WriteAtomic(path, payload.Body); err != nil {
		return Receipt{Platform: p.Name(), Err: err}, err
	}
	return Receipt{
		Platform:    p.Name(),
		Delivered:   true,
		ExternalID:  uuid.NewString(),
		DeliveredAt: time.Now().UTC(),
	}, nil
}
