// Package relay decides which inbound messages reach the backend and in what
// shape.
package relay

import (
	"context"
	"log/slog"
	"strings"

	"wagateway/internal/domain"
	"wagateway/internal/metrics"
)

// UnknownName is the display name used when no name source is available.
const UnknownName = "Unknown"

// Outcome names the rule that ended processing of a message.
type Outcome string

const (
	OutcomeGroup          Outcome = "group"
	OutcomeDebugFilter    Outcome = "debug_filter"
	OutcomeMedia          Outcome = "media"
	OutcomeForwarded      Outcome = "forwarded"
	OutcomeDeliveryFailed Outcome = "delivery_failed"
)

// Pipeline applies the eligibility rules in order and forwards what survives.
type Pipeline struct {
	restaurantID string
	debugFilter  string
	mediaReply   string
	responder    domain.Responder
	forwarder    domain.Forwarder
	logger       *slog.Logger
}

type PipelineConfig struct {
	RestaurantID string
	// DebugFilter, when set, drops messages whose sender does not contain it.
	DebugFilter string
	MediaReply  string
	Responder   domain.Responder
	Forwarder   domain.Forwarder
	Logger      *slog.Logger
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		restaurantID: cfg.RestaurantID,
		debugFilter:  cfg.DebugFilter,
		mediaReply:   cfg.MediaReply,
		responder:    cfg.Responder,
		forwarder:    cfg.Forwarder,
		logger:       cfg.Logger,
	}
}

// Handle runs msg through the pipeline. Order matters: policy drops come
// before any reply to the sender or contact lookup.
func (p *Pipeline) Handle(ctx context.Context, msg domain.InboundMessage) Outcome {
	outcome := p.handle(ctx, msg)
	metrics.InboundMessages(string(outcome)).Inc()
	return outcome
}

func (p *Pipeline) handle(ctx context.Context, msg domain.InboundMessage) Outcome {
	if msg.IsGroup() {
		name := msg.ChatName
		if name == "" {
			name = msg.From
		}
		p.logger.Info("message ignored (group)", "chat", name)
		return OutcomeGroup
	}

	if p.debugFilter != "" && !strings.Contains(msg.From, p.debugFilter) {
		p.logger.Info("message ignored (debug filter)", "from", msg.From, "filter", p.debugFilter)
		return OutcomeDebugFilter
	}

	if msg.HasMedia {
		p.logger.Info("media message rejected", "from", msg.From)
		if err := p.responder.Reply(ctx, msg, p.mediaReply); err != nil {
			p.logger.Error("media reply failed", "from", msg.From, "err", err)
		}
		return OutcomeMedia
	}

	p.logger.Info("message received", "from", msg.From, "id", msg.ID, "body_len", len(msg.Body))

	number, name := p.resolveSender(ctx, msg)
	p.logger.Info("contact resolved", "number", number, "name", name)

	payload := domain.ForwardPayload{
		RestaurantID: p.restaurantID,
		Platform:     domain.PlatformTag,
		ExternalID:   number,
		CustomerName: name,
		Content:      msg.Body,
	}
	p.logger.Debug("forwarding message to backend", "payload", payload)

	if err := p.forwarder.Forward(ctx, payload); err != nil {
		p.logger.Error("failed to forward message to backend", "from", msg.From, "err", err)
		return OutcomeDeliveryFailed
	}
	return OutcomeForwarded
}

// resolveSender picks the sender number (canonical number, then raw network
// id) and display name (push name, saved name, notify name, then UnknownName).
// A failed lookup degrades to what the message itself carries.
func (p *Pipeline) resolveSender(ctx context.Context, msg domain.InboundMessage) (number, name string) {
	contact, err := p.responder.ResolveContact(ctx, msg)
	if err != nil {
		p.logger.Warn("contact lookup failed", "from", msg.From, "err", err)
	}

	number = firstNonEmpty(contact.Number, contact.RawID, msg.SenderUser)
	name = firstNonEmpty(contact.PushName, contact.SavedName, msg.NotifyName, UnknownName)
	return number, name
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
