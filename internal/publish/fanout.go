package publish

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aschepis/distill/internal/model"
)

// Fanout delivers post to every publisher concurrently, per spec.md §5:
// "Publisher fan-out for a single post is parallel across platforms;
// platforms do not share state." Cancellation aborts between platforms —
// a platform already mid-Deliver is allowed to finish, but no further
// platform is started once ctx is done.
func Fanout(ctx context.Context, post model.BlogPost, publishers []Publisher, logger zerolog.Logger) []Receipt {
	receipts := make([]Receipt, len(publishers))
	var wg sync.WaitGroup
	for i, pub := range publishers {
		select {
		case <-ctx.Done():
			receipts[i] = Receipt{Platform: pub.Name(), Err: ctx.Err()}
			continue
		default:
		}
		wg.Add(1)
		go func(i int, pub Publisher) {
			defer wg.Done()
			receipts[i] = deliverOne(ctx, pub, post, logger)
		}(i, pub)
	}
	wg.Wait()
	return receipts
}

func deliverOne(ctx context.Context, pub Publisher, post model.BlogPost, logger zerolog.Logger) Receipt {
	log := logger.With().Str("component", "publish.fanout").Str("platform", pub.Name()).Logger()
	payload, err := pub.Render(post)
	if err != nil {
		log.Warn().Err(err).Str("slug", post.Slug).Msg("render failed")
		return Receipt{Platform: pub.Name(), Err: err}
	}
	receipt, err := pub.Deliver(ctx, payload)
	if err != nil {
		log.Warn().Err(err).Str("slug", post.Slug).Msg("deliver failed")
		return Receipt{Platform: pub.Name(), Err: err}
	}
	log.Info().Str("slug", post.Slug).Str("external_id", receipt.ExternalID).Msg("delivered")
	return receipt
}
