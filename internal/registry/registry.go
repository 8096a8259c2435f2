// Package registry publishes model files to Redis so other processes can
// fetch the model a service was built with.
//
// A published model is stored under <prefix>model:<name>:<version>, where
// the version is the SHA-256 of the exported model file. The latest version
// of each name is kept under <prefix>model:<name>:latest and announced on
// the <prefix>models channel.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/conduit-lang/ormmeta/internal/orm/metadata"
	"github.com/conduit-lang/ormmeta/internal/orm/modelfile"
)

// ErrNotFound is returned when no model is published under a name or version
var ErrNotFound = errors.New("model not published")

// DefaultPrefix prefixes every key and channel
const DefaultPrefix = "ormmeta:"

// Announcement is published on the models channel for every new version
type Announcement struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	EntityTypes int       `json:"entity_types"`
	PublishedAt time.Time `json:"published_at"`
}

// Registry stores model files in Redis
type Registry struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Registry
type Option func(*Registry)

// WithPrefix replaces DefaultPrefix
func WithPrefix(prefix string) Option {
	return func(r *Registry) { r.prefix = prefix }
}

// WithLogger logs publications at info level
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// New wraps an existing client
func New(client *redis.Client, opts ...Option) *Registry {
	r := &Registry{
		client: client,
		prefix: DefaultPrefix,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open connects to the Redis server at url, e.g. redis://localhost:6379/0,
// and checks the connection
func Open(ctx context.Context, url string, opts ...Option) (*Registry, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("registry url: %w", err)
	}
	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to registry: %w", err)
	}
	return New(client, opts...), nil
}

// Close closes the Redis connection
func (r *Registry) Close() error {
	return r.client.Close()
}

// Channel returns the channel announcements are published on
func (r *Registry) Channel() string {
	return r.prefix + "models"
}

func (r *Registry) key(name, version string) string {
	return r.prefix + "model:" + name + ":" + version
}

// Publish stores the model file of model under name and makes it the
// latest version. Publishing an unchanged model returns the existing
// version and announces nothing.
func (r *Registry) Publish(ctx context.Context, name string, model *metadata.FrozenModel) (string, error) {
	if name == "" {
		return "", fmt.Errorf("model name must not be empty")
	}
	data, err := modelfile.FromModel(model.Model()).Marshal()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	version := hex.EncodeToString(sum[:])[:12]

	latest, err := r.client.Get(ctx, r.key(name, "latest")).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	if latest == version {
		r.logger.Debug("model unchanged", zap.String("name", name), zap.String("version", version))
		return version, nil
	}

	announcement, err := json.Marshal(Announcement{
		Name:        name,
		Version:     version,
		EntityTypes: len(model.EntityTypes()),
		PublishedAt: r.now().UTC(),
	})
	if err != nil {
		return "", err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(name, version), data, 0)
		pipe.Set(ctx, r.key(name, "latest"), version, 0)
		pipe.RPush(ctx, r.key(name, "versions"), version)
		pipe.Publish(ctx, r.Channel(), announcement)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", name, err)
	}
	r.logger.Info("model published", zap.String("name", name), zap.String("version", version))
	return version, nil
}

// Latest returns the latest published version of name
func (r *Registry) Latest(ctx context.Context, name string) (string, error) {
	version, err := r.client.Get(ctx, r.key(name, "latest")).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return version, err
}

// Versions returns every published version of name, oldest first
func (r *Registry) Versions(ctx context.Context, name string) ([]string, error) {
	return r.client.LRange(ctx, r.key(name, "versions"), 0, -1).Result()
}

// Fetch returns the model file published under name and version. An empty
// version fetches the latest.
func (r *Registry) Fetch(ctx context.Context, name, version string) (*modelfile.Document, error) {
	if version == "" {
		latest, err := r.Latest(ctx, name)
		if err != nil {
			return nil, err
		}
		version = latest
	}
	data, err := r.client.Get(ctx, r.key(name, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s@%s", ErrNotFound, name, version)
	}
	if err != nil {
		return nil, err
	}
	return modelfile.Parse(data)
}

// Subscribe delivers announcements until ctx is done. The returned channel
// is closed when the subscription ends.
func (r *Registry) Subscribe(ctx context.Context) (<-chan Announcement, error) {
	sub := r.client.Subscribe(ctx, r.Channel())
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	out := make(chan Announcement)
	go func() {
		defer close(out)
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var a Announcement
				if err := json.Unmarshal([]byte(msg.Payload), &a); err != nil {
					r.logger.Warn("malformed announcement", zap.String("payload", msg.Payload), zap.Error(err))
					continue
				}
				select {
				case out <- a:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
