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

// SchedulerPublisher forwards a BlogPost to an external social-scheduling
// service rather than publishing directly, per spec.md §4.9's "scheduler
// dialect". It carries its own config block (config.SchedulerConfig) so
// callers can set a default post type and timezone.
type SchedulerPublisher struct {
	BaseURL         string
	APIKey          string
	DefaultType     string
	ScheduleEnabled bool
	Timezone        string
	HTTPClient      *http.Client
}

func NewSchedulerPublisher(baseURL, apiKey, defaultType, timezone string, scheduleEnabled bool, timeout time.Duration) *SchedulerPublisher {
	return &SchedulerPublisher{
		BaseURL:         baseURL,
		APIKey:          apiKey,
		DefaultType:     defaultType,
		ScheduleEnabled: scheduleEnabled,
		Timezone:        timezone,
		HTTPClient:      &http.Client{Timeout: timeout},
	}
}

func (p *SchedulerPublisher) Name() string { return "scheduler" }

type schedulerRequest struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	PostType string   `json:"post_type"`
	Tags     []string `json:"tags,omitempty"`
	Schedule bool     `json:"schedule"`
	Timezone string   `json:"timezone,omitempty"`
}

func (p *SchedulerPublisher) Render(post model.BlogPost) (Payload, error) {
	postType := p.DefaultType
	if postType == "" {
		postType = "draft"
	}
	body, err := json.Marshal(schedulerRequest{
		Title:    post.Title,
		Body:     post.BodyMarkdown,
		PostType: postType,
		Tags:     post.Themes,
		Schedule: p.ScheduleEnabled,
		Timezone: p.Timezone,
	})
	if err != nil {
		return Payload{}, fmt.Errorf("publish: scheduler render %s: %w", post.Slug, err)
	}
	return Payload{Platform: p.Name(), Body: body, ContentType: "application/json"}, nil
}

func (p *SchedulerPublisher) Deliver(ctx context.Context, payload Payload) (Receipt, error) {
	if p.BaseURL == "" {
		return Receipt{}, fmt.Errorf("publish: scheduler deliver: %w", distillerr.ErrPublisherRejected)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/queue", bytes.NewReader(payload.Body))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}
	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("publish: scheduler deliver: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return Receipt{}, fmt.Errorf("publish: scheduler deliver %s: %w", resp.Status, distillerr.ErrPublisherRejected)
	}
	var decoded struct {
		QueueID string `json:"queue_id"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return Receipt{Platform: p.Name(), Delivered: true, ExternalID: decoded.QueueID, DeliveredAt: time.Now().UTC()}, nil
}
