package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/adiwijaya/go-cart-orders/internal/cart"
	kafkax "github.com/adiwijaya/go-cart-orders/internal/kafka"
	"github.com/adiwijaya/go-cart-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Service hands processed carts off to fulfillment. It consumes
// cart.processed, drops duplicates via Redis and records the hand-off; the
// total lands in the outcome cache so the API keeps serving it after the
// cart row goes cold.
type Service struct {
	Redis       *redis.Client
	Log         *slog.Logger
	ServiceName string
}

// HandleCartProcessed is wired as the consumer handler.
func (s *Service) HandleCartProcessed(ctx context.Context, m kafkago.Message) error {
	var env cart.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != cart.EventCartProcessed {
		return nil // ignore
	}

	// dedup by event_id: consumer groups redeliver on rebalance
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[cart.CartProcessedPayload](env.Payload)
	if err != nil {
		return err
	}

	body, _ := json.Marshal(map[string]string{
		"status": string(cart.StatusProcessed),
		"total":  p.Total.String(),
	})
	skey := fmt.Sprintf(redisx.KeyCartStatus, p.CartID)
	if err := s.Redis.Set(ctx, skey, body, redisx.TTLStatusCache).Err(); err != nil {
		s.Log.Warn("status cache refresh failed", "cart_id", p.CartID, "err", err)
	}

	s.Log.Info("order handed off to fulfillment",
		"cart_id", p.CartID, "user_id", p.UserID, "lines", len(p.Lines), "total", p.Total.String())
	return nil
}
