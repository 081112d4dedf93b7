package service

import (
	"context"
	"errors"

	"tableside/internal/common/logger"
	"tableside/internal/domain"
)

// LogAlerter writes alerts to the structured log.
type LogAlerter struct {
	log *logger.Logger
}

func NewLogAlerter(lg *logger.Logger) *LogAlerter { return &LogAlerter{log: lg} }

func (a *LogAlerter) Alert(_ context.Context, msg domain.AlertMessage) error {
	a.log.Info("alert", map[string]any{
		"kind":     msg.Kind,
		"table_id": msg.TableID,
		"call_id":  msg.CallID,
		"message":  msg.Message,
		"at":       msg.Timestamp,
	})
	return nil
}

type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert domain.AlertMessage) error
}

// BrokerAlerter fans alerts out to every notification subscriber.
type BrokerAlerter struct {
	pub AlertPublisher
}

func NewBrokerAlerter(pub AlertPublisher) *BrokerAlerter { return &BrokerAlerter{pub: pub} }

func (a *BrokerAlerter) Alert(ctx context.Context, msg domain.AlertMessage) error {
	return a.pub.PublishAlert(ctx, msg)
}

// Alerter matches feed.Alerter.
type Alerter interface {
	Alert(ctx context.Context, msg domain.AlertMessage) error
}

// MultiAlerter calls every Alerter in order and joins their errors.
type MultiAlerter []Alerter

func (m MultiAlerter) Alert(ctx context.Context, msg domain.AlertMessage) error {
	var errs []error
	for _, a := range m {
		if a == nil {
			continue
		}
		if err := a.Alert(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
