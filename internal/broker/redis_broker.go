package broker

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

const eventChannel = "studyshare:activity"

// RedisEventBroker implements EventBroker over redis pub/sub.
type RedisEventBroker struct {
	client *redis.Client
	pubsub *redis.PubSub
	ctx    context.Context
}

func NewRedisEventBroker(redisURL string) (*RedisEventBroker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisEventBroker{
		client: client,
		ctx:    ctx,
	}, nil
}

// Client exposes the underlying redis client so other components
// (rate limiter) can share the connection.
func (r *RedisEventBroker) Client() *redis.Client {
	return r.client
}

func (r *RedisEventBroker) Publish(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return r.client.Publish(r.ctx, eventChannel, data).Err()
}

func (r *RedisEventBroker) Subscribe() (<-chan Event, error) {
	r.pubsub = r.client.Subscribe(r.ctx, eventChannel)

	eventChan := make(chan Event, 100)

	go func() {
		defer close(eventChan)

		for redisMsg := range r.pubsub.Channel() {
			var event Event

			if err := json.Unmarshal([]byte(redisMsg.Payload), &event); err != nil {
				continue
			}

			eventChan <- event
		}
	}()

	return eventChan, nil
}

func (r *RedisEventBroker) Close() error {
	if r.pubsub != nil {
		r.pubsub.Close()
	}
	return r.client.Close()
}
