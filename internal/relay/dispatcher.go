package relay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"wagateway/internal/bus"
	"wagateway/internal/metrics"
	"wagateway/internal/qr"
)

// Dispatcher is the single consumer of session events.
type Dispatcher struct {
	events     <-chan bus.Event
	pipeline   *Pipeline
	gatewayURL string
	qrOut      io.Writer // nil disables terminal QR output
	logger     *slog.Logger

	inflight sync.WaitGroup
}

type DispatcherConfig struct {
	Events     <-chan bus.Event
	Pipeline   *Pipeline
	GatewayURL string
	QROut      io.Writer
	Logger     *slog.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		events:     cfg.Events,
		pipeline:   cfg.Pipeline,
		gatewayURL: cfg.GatewayURL,
		qrOut:      cfg.QROut,
		logger:     cfg.Logger,
	}
}

// Run consumes events until the channel closes, then waits for in-flight
// messages to finish. Cancelling ctx does not stop intake: events already
// queued were acknowledged by the network and are still relayed, so callers
// stop the session and close the bus to end Run.
func (d *Dispatcher) Run(ctx context.Context) {
	defer d.inflight.Wait()

	for ev := range d.events {
		d.dispatch(ctx, ev)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev bus.Event) {
	metrics.SessionEvents(ev.Kind.String()).Inc()

	switch ev.Kind {
	case bus.TokenIssued:
		d.logger.Info(fmt.Sprintf("QR received on: %s/qr", d.gatewayURL))
		d.printQR(ev.Token)
	case bus.Ready:
		d.logger.Info("whatsapp client ready")
	case bus.LoggedOut:
		d.logger.Warn("whatsapp session logged out; a new QR code will be issued for pairing")
	case bus.InboundMessage:
		msg := ev.Message
		// In-flight messages finish even when shutdown starts.
		msgCtx := context.WithoutCancel(ctx)
		d.inflight.Add(1)
		go func() {
			defer d.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("inbound handler panic", "id", msg.ID, "panic", r)
				}
			}()
			d.pipeline.Handle(msgCtx, msg)
		}()
	default:
		d.logger.Warn("unknown event", "kind", ev.Kind)
	}
}

func (d *Dispatcher) printQR(token string) {
	if d.qrOut == nil {
		return
	}
	art, err := qr.Terminal(token)
	if err != nil {
		d.logger.Warn("cannot render QR for terminal", "err", err)
		return
	}
	fmt.Fprintln(d.qrOut, art)
}
