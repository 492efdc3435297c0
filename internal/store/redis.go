package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"sync"

	"eslive/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	docKeyPrefix     = "es:doc:"
	channelKeyPrefix = "es:ch:"
)

// RedisStore is the production Gateway. Documents live as JSON strings
// keyed by path; change notifications fan out over pub/sub so every
// connected process observes remote writes, including its own. The
// transport reconnects on its own — subscription loss is not surfaced
// beyond what go-redis does automatically.
type RedisStore struct {
	rdb    *redis.Client
	logger *observability.StoreLogger
}

// NewRedisStore creates a Gateway backed by the given Redis client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{
		rdb:    rdb,
		logger: observability.NewStoreLogger("redis"),
	}
}

// Write overwrites the document at path with value. Descendant
// documents are removed first: a write is a full replacement of the
// subtree, never a merge.
func (s *RedisStore) Write(ctx context.Context, path string, value any) (err error) {
	if value == nil {
		// Null sentinel: a nil write is a removal.
		return s.Remove(ctx, path)
	}

	ctx, span := observability.TraceStoreOperation(ctx, "redis", "write", path)
	defer func() {
		observability.RecordSpanError(span, err)
		span.End()
	}()

	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.LogError(ctx, path, "write", err)
		return fmt.Errorf("marshal document at %s: %w", path, err)
	}

	if err := s.removeKeys(ctx, path, false); err != nil {
		s.logger.LogError(ctx, path, "write", err)
		return err
	}
	if err := s.rdb.Set(ctx, docKeyPrefix+path, payload, 0).Err(); err != nil {
		s.logger.LogError(ctx, path, "write", err)
		return fmt.Errorf("write document at %s: %w", path, err)
	}

	s.logger.LogWrite(ctx, path, false)
	s.publish(ctx, path)
	return nil
}

// Remove deletes the document at path and all of its children.
func (s *RedisStore) Remove(ctx context.Context, path string) (err error) {
	ctx, span := observability.TraceStoreOperation(ctx, "redis", "remove", path)
	defer func() {
		observability.RecordSpanError(span, err)
		span.End()
	}()

	if err := s.removeKeys(ctx, path, true); err != nil {
		s.logger.LogError(ctx, path, "remove", err)
		return err
	}
	s.logger.LogWrite(ctx, path, true)
	s.publish(ctx, path)
	return nil
}

// Read returns the current value at path. When the path holds no
// document of its own, child documents are assembled into a map keyed
// by their remaining path segments.
func (s *RedisStore) Read(ctx context.Context, path string) (_ any, _ bool, err error) {
	ctx, span := observability.TraceStoreOperation(ctx, "redis", "read", path)
	defer func() {
		observability.RecordSpanError(span, err)
		span.End()
	}()

	base, found, err := s.readDoc(ctx, docKeyPrefix+path)
	if err != nil {
		s.logger.LogError(ctx, path, "read", err)
		return nil, false, err
	}

	children, err := s.childKeys(ctx, path)
	if err != nil {
		s.logger.LogError(ctx, path, "read", err)
		return nil, false, err
	}

	if len(children) == 0 {
		s.logger.LogRead(ctx, path, found)
		return base, found, nil
	}

	assembled, ok := base.(map[string]any)
	if !ok {
		assembled = make(map[string]any)
	}
	for _, key := range children {
		child, childFound, err := s.readDoc(ctx, key)
		if err != nil {
			s.logger.LogError(ctx, path, "read", err)
			return nil, false, err
		}
		if !childFound {
			continue
		}
		insertChild(assembled, strings.TrimPrefix(key, docKeyPrefix+path+"/"), child)
	}

	s.logger.LogRead(ctx, path, true)
	return assembled, true, nil
}

// Subscribe registers a continuous listener rooted at path. The
// callback fires once with the current value before Subscribe returns,
// then after every change at or beneath the path.
func (s *RedisStore) Subscribe(ctx context.Context, path string, onChange ChangeFunc) (Subscription, error) {
	channels := make([]string, 0, 4)
	for _, prefix := range pathPrefixes(path) {
		channels = append(channels, channelKeyPrefix+prefix)
	}

	pubsub := s.rdb.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		s.logger.LogError(ctx, path, "subscribe", err)
		return nil, fmt.Errorf("subscribe at %s: %w", path, err)
	}

	subCtx, cancel := context.WithCancel(context.Background())
	sub := &redisSubscription{
		store:  s,
		path:   path,
		pubsub: pubsub,
		cancel: cancel,
	}

	value, _, err := s.Read(ctx, path)
	if err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	onChange(value)

	go sub.pump(subCtx, onChange)

	s.logger.LogSubscribe(ctx, path, true)
	return sub, nil
}

type redisSubscription struct {
	store  *RedisStore
	path   string
	pubsub *redis.PubSub
	cancel context.CancelFunc
	once   sync.Once
}

// Unsubscribe releases the listener. Safe to call more than once.
func (sub *redisSubscription) Unsubscribe() {
	sub.once.Do(func() {
		sub.cancel()
		_ = sub.pubsub.Close()
		sub.store.logger.LogSubscribe(context.Background(), sub.path, false)
	})
}

// pump forwards change notifications. Each notification triggers a
// fresh read of the subscribed path: subscribers always see the latest
// value, never a replay of intermediate writes.
func (sub *redisSubscription) pump(ctx context.Context, onChange ChangeFunc) {
	ch := sub.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			changed := strings.TrimPrefix(msg.Channel, channelKeyPrefix)
			if !pathsRelated(sub.path, changed) {
				continue
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("PANIC in store subscription for %s: %v\n%s", sub.path, r, debug.Stack())
					}
				}()
				value, _, err := sub.store.Read(ctx, sub.path)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						sub.store.logger.LogError(ctx, sub.path, "subscribe", err)
					}
					return
				}
				onChange(value)
			}()
		}
	}
}

// publish notifies the path's own channel and every ancestor channel.
// Combined with descendant-carrying messages on ancestor channels this
// wakes exactly the subscribers whose paths overlap the written path.
func (s *RedisStore) publish(ctx context.Context, path string) {
	for _, prefix := range pathPrefixes(path) {
		if err := s.rdb.Publish(ctx, channelKeyPrefix+prefix, path).Err(); err != nil {
			s.logger.LogError(ctx, path, "publish", err)
			return
		}
	}
}

func (s *RedisStore) readDoc(ctx context.Context, key string) (any, bool, error) {
	raw, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read document %s: %w", key, err)
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, false, fmt.Errorf("decode document %s: %w", key, err)
	}
	return value, true, nil
}

func (s *RedisStore) childKeys(ctx context.Context, path string) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, docKeyPrefix+path+"/*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan children of %s: %w", path, err)
	}
	return keys, nil
}

// removeKeys deletes the subtree under path; when self is true the
// path's own document goes too.
func (s *RedisStore) removeKeys(ctx context.Context, path string, self bool) error {
	keys, err := s.childKeys(ctx, path)
	if err != nil {
		return err
	}
	if self {
		keys = append(keys, docKeyPrefix+path)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("remove documents under %s: %w", path, err)
	}
	return nil
}

// insertChild places a child value into the assembled map, nesting
// maps for any intermediate path segments.
func insertChild(into map[string]any, rest string, value any) {
	segments := strings.Split(rest, "/")
	for _, seg := range segments[:len(segments)-1] {
		next, ok := into[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			into[seg] = next
		}
		into = next
	}
	into[segments[len(segments)-1]] = value
}
