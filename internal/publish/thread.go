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

const threadSegmentLimit = 280

// ThreadPublisher splits a BlogPost into short segments and delivers them
// as a reply chain, one HTTP call per segment. Unlike the one-shot
// dialects, ordering within a thread is load-bearing: segment N+1 is only
// sent once segment N's external id is known, per spec.md §5's "distinct
// ordering... semantics" per platform.
type ThreadPublisher struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewThreadPublisher(baseURL, apiKey string, timeout time.Duration) *ThreadPublisher {
	return &ThreadPublisher{BaseURL: baseURL, APIKey: apiKey, HTTPClient: &http.Client{Timeout: timeout}}
}

func (p *ThreadPublisher) Name() string { return "thread" }

func (p *ThreadPublisher) Render(post model.BlogPost) (Payload, error) {
	segments := segmentThread(post.Title, post.BodyMarkdown)
	body, err := json.Marshal(segments)
	if err != nil {
		return Payload{}, fmt.Errorf("publish: thread render %s: %w", post.Slug, err)
	}
	return Payload{Platform: p.Name(), Body: body, ContentType: "application/json"}, nil
}

func segmentThread(title, body string) []string {
	paragraphs := strings.Split(strings.TrimSpace(body), "\n\n")
	segments := []string{strings.TrimSpace(title)}
	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" || strings.HasPrefix(para, "#") {
			continue
		}
		for len(para) > threadSegmentLimit {
			cut := strings.LastIndex(para[:threadSegmentLimit], " ")
			if cut <= 0 {
				cut = threadSegmentLimit
			}
			segments = append(segments, strings.TrimSpace(para[:cut]))
			para = strings.TrimSpace(para[cut:])
		}
		if para != "" {
			segments = append(segments, para)
		}
	}
	return segments
}

func (p *ThreadPublisher) Deliver(ctx context.Context, payload Payload) (Receipt, error) {
	if p.BaseURL == "" {
		return Receipt{}, fmt.Errorf("publish: thread deliver: %w", distillerr.ErrPublisherRejected)
	}
	var segments []string
	if err := json.Unmarshal(payload.Body, &segments); err != nil {
		return Receipt{}, err
	}

	replyTo := ""
	rootID := ""
	for i, segment := range segments {
		select {
		case <-ctx.Done():
			return Receipt{Platform: p.Name(), Err: ctx.Err()}, ctx.Err()
		default:
		}
		id, err := p.postSegment(ctx, segment, replyTo)
		if err != nil {
			return Receipt{Platform: p.Name(), Err: fmt.Errorf("segment %d/%d: %w", i+1, len(segments), err)}, err
		}
		if i == 0 {
			rootID = id
		}
		replyTo = id
	}
	return Receipt{Platform: p.Name(), Delivered: true, ExternalID: rootID, DeliveredAt: time.Now().UTC()}, nil
}

func (p *ThreadPublisher) postSegment(ctx context.Context, text, replyTo string) (string, error) {
	body, err := json.Marshal(map[string]string{"text": text, "reply_to": replyTo})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/statuses", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}
	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%s: %w", resp.Status, distillerr.ErrPublisherRejected)
	}
	var decoded struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	return decoded.ID, nil
}
