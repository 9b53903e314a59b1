package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aschepis/distill/internal/distillerr"
	"github.com/aschepis/distill/internal/model"
)

// DiscussionPublisher renders a forum-style post (Discourse-like): a
// title plus full markdown body, posted to a category endpoint, suited
// for venues where the full write-up belongs in one self-contained
// thread rather than split or condensed.
type DiscussionPublisher struct {
	BaseURL    string
	APIKey     string
	Category   string
	HTTPClient *http.Client
}

func NewDiscussionPublisher(baseURL, apiKey, category string, timeout time.Duration) *DiscussionPublisher {
	return &DiscussionPublisher{BaseURL: baseURL, APIKey: apiKey, Category: category, HTTPClient: &http.Client{Timeout: timeout}}
}

func (p *DiscussionPublisher) Name() string { return "discussion" }

func (p *DiscussionPublisher) Render(post model.BlogPost) (Payload, error) {
	body, err := json.Marshal(map[string]string{
		"title":    post.Title,
		"raw":      post.BodyMarkdown,
		"category": p.Category,
	})
	if err != nil {
		return Payload{}, fmt.Errorf("publish: discussion render %s: %w", post.Slug, err)
	}
	return Payload{Platform: p.Name(), Body: body, ContentType: "application/json"}, nil
}

func (p *DiscussionPublisher) Deliver(ctx context.Context, payload Payload) (Receipt, error) {
	if p.BaseURL == "" {
		return Receipt{}, fmt.Errorf("publish: discussion deliver: %w", distillerr.ErrPublisherRejected)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/posts.json", bytes.NewReader(payload.Body))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Api-Key", p.APIKey)
	}
	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("publish: discussion deliver: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return Receipt{}, fmt.Errorf("publish: discussion deliver %s: %w", resp.Status, distillerr.ErrPublisherRejected)
	}
	var decoded struct {
		ID int `json:"id"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return Receipt{Platform: p.Name(), Delivered: true, ExternalID: fmt.Sprintf("%d", decoded.ID), DeliveredAt: time.Now().UTC()}, nil
}
