package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/aschepis/distill/internal/distillerr"
	"github.com/aschepis/distill/internal/model"
)

// CMSPublisher delivers to a Ghost-like CMS over its authenticated
// content API, following the teacher's HTTPRemoteCaller shape
// (tools/remote_client.go): a fixed-timeout *http.Client, an Authorization
// header (Ghost scheme), JSON body, status 400 and above treated as
// rejection.
type CMSPublisher struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewCMSPublisher(baseURL, apiKey string, timeout time.Duration) *CMSPublisher {
	return &CMSPublisher{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (p *CMSPublisher) Name() string { return "cms" }

type cmsPost struct {
	Title       string   `json:"title"`
	HTML        string   `json:"html"`
	Slug        string   `json:"slug"`
	Tags        []string `json:"tags,omitempty"`
	PublishedAt string   `json:"published_at,omitempty"`
}

func (p *CMSPublisher) Render(post model.BlogPost) (Payload, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var htmlBuf bytes.Buffer
	if err := md.Convert([]byte(post.BodyMarkdown), &htmlBuf); err != nil {
		return Payload{}, fmt.Errorf("publish: cms render %s: %w", post.Slug, err)
	}
	body, err := json.Marshal(cmsPost{
		Title:       post.Title,
		HTML:        htmlBuf.String(),
		Slug:        post.Slug,
		Tags:        post.Themes,
		PublishedAt: post.Date,
	})
	if err != nil {
		return Payload{}, fmt.Errorf("publish: cms marshal %s: %w", post.Slug, err)
	}
	return Payload{Platform: p.Name(), Body: body, ContentType: "application/json"}, nil
}

func (p *CMSPublisher) Deliver(ctx context.Context, payload Payload) (Receipt, error) {
	if p.BaseURL == "" {
		return Receipt{}, fmt.Errorf("publish: cms deliver: %w", distillerr.ErrPublisherRejected)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/ghost/api/admin/posts/", bytes.NewReader(payload.Body))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Ghost "+p.APIKey)
	}

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("publish: cms deliver: %w", err)
	}
	defer resp.Body.Close()

	respBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return Receipt{}, fmt.Errorf("publish: cms deliver %s: %w", resp.Status, distillerr.ErrPublisherRejected)
	}

	var decoded struct {
		Posts []struct {
			ID string `json:"id"`
		} `json:"posts"`
	}
	externalID := ""
	if err := json.Unmarshal(respBytes, &decoded); err == nil && len(decoded.Posts) > 0 {
		externalID = decoded.Posts[0].ID
	}

	return Receipt{
		Platform:    p.Name(),
		Delivered:   true,
		ExternalID:  externalID,
		DeliveredAt: time.Now().UTC(),
	}, nil
}
