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

// VaultPublisher renders a BlogPost as an Obsidian-style markdown file
// with wiki-links and frontmatter, and delivers by writing it under
// dir/blog/<platform>/<slug>.md via atomic rename (spec.md §6's persisted
// layout, §5's "durable writes (atomic rename)").
type VaultPublisher struct {
	Dir string
}

func NewVaultPublisher(dir string) *VaultPublisher {
	return &VaultPublisher{Dir: dir}
}

func (p *VaultPublisher) Name() string { return "vault" }

func (p *VaultPublisher) Render(post model.BlogPost) (Payload, error) {
	var sb strings.Builder
	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "title: %q\n", post.Title)
	fmt.Fprintf(&sb, "date: %s\n", post.Date)
	fmt.Fprintf(&sb, "slug: %s\n", post.Slug)
	if len(post.Themes) > 0 {
		sb.WriteString("themes:\n")
		for _, t := range post.Themes {
			fmt.Fprintf(&sb, "  - \"[[%s]]\"\n", t)
		}
	}
	sb.WriteString("---\n\n")
	sb.WriteString(post.BodyMarkdown)
	if len(post.SourceDates) > 0 {
		sb.WriteString("\n\n## Related\n")
		for _, d := range post.SourceDates {
			fmt.Fprintf(&sb, "- [[journal-%s]]\n", d)
		}
	}
	return Payload{
		Platform:    p.Name(),
		Body:        []byte(sb.String()),
		ContentType: "text/markdown",
		Metadata:    map[string]string{"slug": post.Slug},
	}, nil
}

func (p *VaultPublisher) Deliver(ctx context.Context, payload Payload) (Receipt, error) {
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
