package reports

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/William6892/barcodeverify-backend/internal/kafka"
	"github.com/William6892/barcodeverify-backend/internal/redisx"
	"github.com/William6892/barcodeverify-backend/internal/shipping"
)

// CounterStore is the little slice of Redis the reporter needs. MarkSeen
// returns false when the event id was already recorded.
type CounterStore interface {
	MarkSeen(ctx context.Context, eventID string) (bool, error)
	IncrBy(ctx context.Context, key string, n int64) error
}

type RedisCounters struct{ RDB *redis.Client }

func (c *RedisCounters) MarkSeen(ctx context.Context, eventID string) (bool, error) {
	return c.RDB.SetNX(ctx, redisx.KeyDedup(eventID), 1, redisx.TTLDedup).Result()
}

func (c *RedisCounters) IncrBy(ctx context.Context, key string, n int64) error {
	pipe := c.RDB.TxPipeline()
	pipe.IncrBy(ctx, key, n)
	pipe.Expire(ctx, key, redisx.TTLDailyStats)
	_, err := pipe.Exec(ctx)
	return err
}

// Reporter folds shipment events into the daily counters behind the
// quick-stats endpoint. Events are deduplicated by event id so a redelivered
// message never double-counts.
type Reporter struct {
	counters CounterStore
}

func NewReporter(counters CounterStore) *Reporter {
	return &Reporter{counters: counters}
}

// Handle is the kafka consumer callback. Unknown event types are skipped,
// malformed messages are logged and dropped rather than retried forever.
func (r *Reporter) Handle(ctx context.Context, msg kafkago.Message) error {
	var env shipping.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		log.Printf("reporter: drop malformed message topic=%s offset=%d err=%v", msg.Topic, msg.Offset, err)
		return nil
	}

	fresh, err := r.counters.MarkSeen(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !fresh {
		return nil
	}

	day := env.OccurredAt.UTC().Format("2006-01-02")
	switch env.EventType {
	case shipping.EventProductScanned:
		p, err := kafkax.UnwrapPayload[shipping.ProductScannedPayload](env.Payload)
		if err != nil {
			log.Printf("reporter: bad payload event=%s err=%v", env.EventID, err)
			return nil
		}
		return r.counters.IncrBy(ctx, redisx.KeyScansDaily(day), int64(p.Quantity))
	case shipping.EventShipmentCompleted:
		return r.counters.IncrBy(ctx, redisx.KeyCompletedDaily(day), 1)
	default:
		return nil
	}
}

type QuickStats struct {
	Date           string `json:"date"`
	ScansToday     int64  `json:"scans_today"`
	CompletedToday int64  `json:"completed_today"`
	Source         string `json:"source"`
}

// QuickStatsFor reads the reporter-maintained counters. Missing keys read as
// zero: the full dashboard query is the slow, authoritative path.
func QuickStatsFor(ctx context.Context, rdb *redis.Client, now time.Time) (*QuickStats, error) {
	day := now.UTC().Format("2006-01-02")
	vals, err := rdb.MGet(ctx, redisx.KeyScansDaily(day), redisx.KeyCompletedDaily(day)).Result()
	if err != nil {
		return nil, err
	}
	qs := &QuickStats{Date: day, Source: "redis"}
	qs.ScansToday = asInt64(vals[0])
	qs.CompletedToday = asInt64(vals[1])
	return qs, nil
}

func asInt64(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int64(c-'0')
	}
	return n
}
