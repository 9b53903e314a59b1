package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aschepis/distill/internal/distillerr"
	"github.com/aschepis/distill/internal/model"
)

// ProfessionalPublisher renders a condensed, hook-led version of a
// BlogPost suited to a professional-network feed post: the title followed
// by at most 5 key points, with no body text, headings or diagrams (feeds
// render plain text, not markdown).
type ProfessionalPublisher struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewProfessionalPublisher(baseURL, apiKey string, timeout time.Duration) *ProfessionalPublisher {
	return &ProfessionalPublisher{BaseURL: baseURL, APIKey: apiKey, HTTPClient: &http.Client{Timeout: timeout}}
}

func (p *ProfessionalPublisher) Name() string { return "professional" }

func (p *ProfessionalPublisher) Render(post model.BlogPost) (Payload, error) {
	var sb strings.Builder
	sb.WriteString(post.Title)
	sb.WriteString("\n\n")
	for i, kp := range post.KeyPoints {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&sb, "→ %s\n", kp)
	}
	body, err := json.Marshal(map[string]string{"text": strings.TrimSpace(sb.String())})
	if err != nil {
		return Payload{}, fmt.Errorf("publish: professional render %s: %w", post.Slug, err)
	}
	return Payload{Platform: p.Name(), Body: body, ContentType: "application/json"}, nil
}

func (p *ProfessionalPublisher) Deliver(ctx context.Context, payload Payload) (Receipt, error) {
	if p.BaseURL == "" {
		return Receipt{}, fmt.Errorf("publish: professional deliver: %w", distillerr.ErrPublisherRejected)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/shares", bytes.NewReader(payload.Body))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}
	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("publish: professional deliver: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return Receipt{}, fmt.Errorf("publish: professional deliver %s: %w", resp.Status, distillerr.ErrPublisherRejected)
	}
	var decoded struct {
		ID string `json:"id"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return Receipt{Platform: p.Name(), Delivered: true, ExternalID: decoded.ID, DeliveredAt: time.Now().UTC()}, nil
}
