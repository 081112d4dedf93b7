package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"tableside/internal/common/logger"
	"tableside/internal/domain"
)

var (
	ErrRequeue = errors.New("requeue")     // nack(requeue=true)
	ErrDLQ     = errors.New("dead_letter") // nack(requeue=false)
)

type Consumer interface {
	Consume(queue, consumer string, prefetch int) (<-chan amqp.Delivery, func(), error)
}

type NotificatorServiceInterface interface {
	Run(ctx context.Context) error
}

type NotificatorService struct {
	consumer Consumer
	sink     Alerter
	log      *logger.Logger

	Queue    string
	Tag      string
	Prefetch int
}

// NewNotificatorService consumes alerts from queue and hands each one to sink.
func NewNotificatorService(consumer Consumer, sink Alerter, queue string, lg *logger.Logger) *NotificatorService {
	return &NotificatorService{
		consumer: consumer,
		sink:     sink,
		log:      lg,
		Queue:    queue,
		Tag:      "notificator",
		Prefetch: 10,
	}
}

func (ns *NotificatorService) Run(ctx context.Context) error {
	msgs, stop, err := ns.consumer.Consume(ns.Queue, ns.Tag, ns.Prefetch)
	if err != nil {
		return fmt.Errorf("consume %s: %w", ns.Queue, err)
	}
	defer stop()
	ns.log.Info("consumer_started", map[string]any{"queue": ns.Queue, "prefetch": ns.Prefetch})

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("notification deliveries closed")
			}
			ns.settle(d, ns.processOne(ctx, d))
		}
	}
}

func (ns *NotificatorService) settle(d amqp.Delivery, err error) {
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrRequeue):
		ns.log.Warn("notification_requeued", map[string]any{"delivery_tag": d.DeliveryTag, "error": err.Error()})
		_ = d.Nack(false, true)
	default:
		ns.log.Error("notification_rejected", err, map[string]any{"delivery_tag": d.DeliveryTag})
		_ = d.Nack(false, false)
	}
}

func (ns *NotificatorService) processOne(ctx context.Context, d amqp.Delivery) error {
	var msg domain.AlertMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return fmt.Errorf("%w: decode alert: %v", ErrDLQ, err)
	}
	if msg.Kind != domain.AlertNewOrder && msg.Kind != domain.AlertWaiterCall {
		return fmt.Errorf("%w: unknown alert kind %q", ErrDLQ, msg.Kind)
	}
	if err := ns.sink.Alert(ctx, msg); err != nil {
		if d.Redelivered {
			return fmt.Errorf("%w: %v", ErrDLQ, err)
		}
		return fmt.Errorf("%w: %v", ErrRequeue, err)
	}
	return nil
}
