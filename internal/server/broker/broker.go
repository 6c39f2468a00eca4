// Package broker пересылает обновления комнат между экземплярами
// relay-сервера через Redis pub/sub. Каждый экземпляр публикует принятые
// от своих клиентов обновления и применяет обновления остальных.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel канал Redis по умолчанию
const DefaultChannel = "boardsync:updates"

// ErrClosed broker закрыт
var ErrClosed = errors.New("broker is closed")

// Envelope сообщение между экземплярами relay-сервера
type Envelope struct {
	Origin string `json:"origin"` // экземпляр-отправитель
	Room   string `json:"room"`
	Update []byte `json:"update"`
}

// Handler применяет обновление, пришедшее от другого экземпляра
type Handler func(room string, update []byte)

// Broker Redis pub/sub для обновлений комнат
type Broker struct {
	client  *redis.Client
	logger  *slog.Logger
	channel string
	origin  string
}

// New создает broker поверх подключенного клиента Redis.
func New(client *redis.Client, channel string, logger *slog.Logger) *Broker {
	if channel == "" {
		channel = DefaultChannel
	}

	return &Broker{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger.With("component", "broker"),
	}
}

// Connect создает клиента Redis и проверяет подключение.
func Connect(ctx context.Context, addr, channel string, logger *slog.Logger) (*Broker, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return New(client, channel, logger), nil
}

// Origin идентификатор этого экземпляра
func (b *Broker) Origin() string {
	return b.origin
}

// Publish отправляет обновление комнаты остальным экземплярам.
func (b *Broker) Publish(ctx context.Context, room string, update []byte) error {
	data, err := json.Marshal(Envelope{Origin: b.origin, Room: room, Update: update})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish update: %w", err)
	}

	return nil
}

// Run подписывается на канал и вызывает handler для обновлений других
// экземпляров. Блокируется до отмены ctx.
func (b *Broker) Run(ctx context.Context, handler Handler) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer func() {
		_ = pubsub.Close()
	}()

	// дожидаемся подтверждения подписки
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	b.logger.Info("Subscribed to updates", "channel", b.channel, "origin", b.origin)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return ErrClosed
			}
			b.dispatch(msg.Payload, handler)
		}
	}
}

// dispatch декодирует сообщение и отбрасывает собственные публикации
func (b *Broker) dispatch(payload string, handler Handler) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.logger.Warn("Malformed envelope", "error", err)
		return
	}
	if env.Origin == b.origin {
		return
	}
	if env.Room == "" || len(env.Update) == 0 {
		b.logger.Warn("Incomplete envelope", "origin", env.Origin)
		return
	}

	handler(env.Room, env.Update)
}

// Close закрывает клиента Redis.
func (b *Broker) Close() error {
	return b.client.Close()
}
