// Package rabbitmq - тонкая обертка над AMQP-подключением для публикации
// событий в topic exchange.
package rabbitmq

import (
	"errors"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

var (
	// ErrDial не удалось подключиться к брокеру
	ErrDial = errors.New("rabbitmq: failed to dial broker")

	// ErrChannel не удалось открыть канал
	ErrChannel = errors.New("rabbitmq: failed to open channel")

	// ErrDeclareExchange не удалось объявить exchange
	ErrDeclareExchange = errors.New("rabbitmq: failed to declare exchange")

	// ErrPublish не удалось опубликовать сообщение
	ErrPublish = errors.New("rabbitmq: failed to publish message")
)

// Publisher публикует сообщения в durable topic exchange
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewPublisher подключается к брокеру и объявляет exchange
func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%w: NewPublisher - dial: %v", ErrDial, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: NewPublisher - channel: %v", ErrChannel, err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%w: NewPublisher - declare %q: %v", ErrDeclareExchange, exchange, err)
	}

	return &Publisher{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
	}, nil
}

// Publish отправляет сообщение с persistent delivery. Сообщение переживёт
// рестарт брокера - дедупликацию обеспечивает messageID на стороне потребителя.
func (p *Publisher) Publish(routingKey, messageID string, body []byte) error {
	err := p.ch.Publish(p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%w: Publish - key=%s: %v", ErrPublish, routingKey, err)
	}
	return nil
}

// Close закрывает канал и соединение
func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
