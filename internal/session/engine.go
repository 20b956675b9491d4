// Package session adapts the whatsmeow client into the session engine used
// by the relay and the gateway.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"wagateway/internal/bus"
	"wagateway/internal/domain"
)

// Publisher receives session events.
type Publisher interface {
	Publish(ev bus.Event)
}

// connection is the part of the whatsmeow client that drives the session
// lifecycle.
type connection interface {
	GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error)
	Connect() error
	Disconnect()
	SendPresence(ctx context.Context, state types.Presence) error
}

// pairingRetryDelay separates pairing rounds after a timeout, an error or a
// logout.
const pairingRetryDelay = 3 * time.Second

// Engine owns the connection to WhatsApp and the session state cell.
type Engine struct {
	client *whatsmeow.Client
	conn   connection
	events Publisher
	state  *State
	logger *slog.Logger

	unpaired   chan struct{} // signalled when the device loses its credentials
	retryDelay time.Duration
}

type EngineConfig struct {
	Store  *Store
	Events Publisher
	Logger *slog.Logger
}

func NewEngine(ctx context.Context, cfg EngineConfig) (*Engine, error) {
	device, err := cfg.Store.Device(ctx)
	if err != nil {
		return nil, err
	}

	client := whatsmeow.NewClient(device, NewLogger(cfg.Logger, "client"))
	e := &Engine{
		client:     client,
		conn:       client,
		events:     cfg.Events,
		state:      NewState(),
		logger:     cfg.Logger,
		unpaired:   make(chan struct{}, 1),
		retryDelay: pairingRetryDelay,
	}
	client.AddEventHandler(e.handleEvent)
	return e, nil
}

// State exposes the session state for read-only consumers.
func (e *Engine) State() *State { return e.state }

// Paired reports whether the store already holds credentials.
func (e *Engine) Paired() bool { return e.client.Store.ID != nil }

// Start connects the client. An unpaired device enters pairing, which keeps
// issuing fresh tokens until a scan succeeds or ctx is done. A later logout
// re-enters pairing the same way.
func (e *Engine) Start(ctx context.Context) error {
	var items <-chan whatsmeow.QRChannelItem
	if e.Paired() {
		e.logger.Info("connecting with stored credentials", "jid", e.client.Store.ID.String())
		if err := e.conn.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
	} else {
		var err error
		if items, err = e.openPairing(ctx); err != nil {
			return err
		}
	}
	go e.supervise(ctx, items)
	return nil
}

// Stop disconnects from WhatsApp. Credentials stay in the store.
func (e *Engine) Stop() {
	e.conn.Disconnect()
}

// openPairing subscribes to a new batch of QR tokens and connects.
func (e *Engine) openPairing(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	items, err := e.conn.GetQRChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("qr channel: %w", err)
	}
	if err := e.conn.Connect(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return items, nil
}

// supervise runs pairing rounds until one succeeds, then waits for the device
// to lose its credentials and starts over. items is nil when the device is
// already paired.
func (e *Engine) supervise(ctx context.Context, items <-chan whatsmeow.QRChannelItem) {
	for {
		if items != nil {
			if e.watchQR(items) {
				items = nil
				continue
			}
			items = e.retryPairing(ctx)
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-e.unpaired:
			items = e.retryPairing(ctx)
		}
	}
}

// retryPairing opens a new pairing round after retryDelay, retrying until it
// succeeds. It returns nil once ctx is done.
func (e *Engine) retryPairing(ctx context.Context) <-chan whatsmeow.QRChannelItem {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(e.retryDelay):
		}
		e.conn.Disconnect()
		items, err := e.openPairing(ctx)
		if err == nil {
			return items
		}
		e.logger.Warn("cannot restart pairing", "err", err)
	}
}

// watchQR relays one pairing round and reports whether it ended paired.
func (e *Engine) watchQR(items <-chan whatsmeow.QRChannelItem) bool {
	paired := false
	for item := range items {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			e.state.IssueToken(item.Code)
			e.events.Publish(bus.NewTokenIssued(item.Code))
		case whatsmeow.QRChannelSuccess.Event:
			paired = true
			e.logger.Info("pairing succeeded")
		case whatsmeow.QRChannelTimeout.Event:
			e.state.Reset()
			e.logger.Warn("pairing timed out; issuing a new QR code")
		case whatsmeow.QRChannelEventError:
			e.state.Reset()
			e.logger.Error("pairing failed", "err", item.Error)
		default:
			e.state.Reset()
			e.logger.Warn("pairing ended", "event", item.Event)
		}
	}
	return paired
}

func (e *Engine) handleEvent(evt any) {
	switch v := evt.(type) {
	case *events.Connected:
		e.state.MarkReady()
		e.events.Publish(bus.NewReady())
		// Chat presence is only delivered while the account is available.
		if err := e.conn.SendPresence(context.Background(), types.PresenceAvailable); err != nil {
			e.logger.Debug("cannot announce availability", "err", err)
		}
	case *events.PairSuccess:
		e.logger.Info("device paired", "jid", v.ID.String(), "platform", v.Platform)
	case *events.LoggedOut:
		e.state.Reset()
		e.events.Publish(bus.NewLoggedOut())
		select {
		case e.unpaired <- struct{}{}:
		default:
		}
	case *events.Disconnected:
		e.logger.Warn("whatsapp connection lost")
	case *events.Message:
		if v.Info.IsFromMe {
			return
		}
		msg, ok := translateMessage(v)
		if !ok {
			e.logger.Info("skipping message without relayable content", "id", v.Info.ID, "type", v.Info.Type)
			return
		}
		e.events.Publish(bus.NewInbound(msg))
	}
}

func (e *Engine) ensureConnected(op string) error {
	if !e.client.IsConnected() {
		return &domain.TransportError{Op: op, Err: domain.ErrNotConnected}
	}
	return nil
}

// ResolveChat validates handle against the network and returns its
// canonical form.
func (e *Engine) ResolveChat(ctx context.Context, handle domain.ChatHandle) (domain.ChatHandle, error) {
	jid, err := parseHandle(handle)
	if err != nil {
		return "", &domain.ChatNotFoundError{Handle: handle}
	}
	if err := e.ensureConnected("resolve chat"); err != nil {
		return "", err
	}
	if jid.Server != types.DefaultUserServer {
		return domain.ChatHandle(jid.String()), nil
	}

	resp, err := e.client.IsOnWhatsApp(ctx, []string{"+" + jid.User})
	if err != nil {
		return "", &domain.TransportError{Op: "resolve chat", Err: err}
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return "", &domain.ChatNotFoundError{Handle: handle}
	}
	return domain.ChatHandle(resp[0].JID.String()), nil
}

// SendMessage sends a plain text message to chat.
func (e *Engine) SendMessage(ctx context.Context, chat domain.ChatHandle, text string) error {
	jid, err := parseHandle(chat)
	if err != nil {
		return &domain.ChatNotFoundError{Handle: chat}
	}
	if err := e.ensureConnected("send message"); err != nil {
		return err
	}
	if _, err := e.client.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(text)}); err != nil {
		return &domain.TransportError{Op: "send message", Err: err}
	}
	return nil
}

// SetPresence shows or clears the typing/recording indicator in chat.
func (e *Engine) SetPresence(ctx context.Context, chat domain.ChatHandle, state domain.PresenceState) error {
	presence, media, err := presenceFor(state)
	if err != nil {
		return err
	}
	jid, err := parseHandle(chat)
	if err != nil {
		return &domain.ChatNotFoundError{Handle: chat}
	}
	if err := e.ensureConnected("set presence"); err != nil {
		return err
	}
	if err := e.client.SendChatPresence(ctx, jid, presence, media); err != nil {
		return &domain.TransportError{Op: "set presence", Err: err}
	}
	return nil
}

// Reply sends text to the sender of msg, quoting it.
func (e *Engine) Reply(ctx context.Context, msg domain.InboundMessage, text string) error {
	if err := e.ensureConnected("reply"); err != nil {
		return err
	}

	evt, ok := msg.Ref.(*events.Message)
	if !ok || evt == nil {
		jid, err := parseHandle(domain.ChatHandle(msg.From))
		if err != nil {
			return &domain.ChatNotFoundError{Handle: domain.ChatHandle(msg.From)}
		}
		_, err = e.client.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(text)})
		if err != nil {
			return &domain.TransportError{Op: "reply", Err: err}
		}
		return nil
	}

	reply := &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String(text),
			ContextInfo: &waE2E.ContextInfo{
				StanzaID:      proto.String(string(evt.Info.ID)),
				Participant:   proto.String(evt.Info.Sender.ToNonAD().String()),
				QuotedMessage: evt.Message,
			},
		},
	}
	if _, err := e.client.SendMessage(ctx, evt.Info.Chat, reply); err != nil {
		return &domain.TransportError{Op: "reply", Err: err}
	}
	return nil
}

// ResolveContact looks up what the session knows about the sender of msg.
// Partial results are returned together with the first lookup error.
func (e *Engine) ResolveContact(ctx context.Context, msg domain.InboundMessage) (domain.Contact, error) {
	evt, ok := msg.Ref.(*events.Message)
	if !ok || evt == nil {
		return domain.Contact{RawID: msg.SenderUser}, errors.New("message carries no engine reference")
	}

	sender := evt.Info.Sender.ToNonAD()
	contact := domain.Contact{RawID: sender.User}

	var lookupErr error
	pn, err := e.phoneNumber(ctx, evt.Info.MessageSource)
	if err != nil {
		lookupErr = err
	} else {
		contact.Number = pn.User
	}

	info, err := e.client.Store.Contacts.GetContact(ctx, sender)
	if err != nil {
		if lookupErr == nil {
			lookupErr = fmt.Errorf("contact store: %w", err)
		}
		return contact, lookupErr
	}
	contact.PushName = info.PushName
	contact.SavedName = info.FullName
	if contact.SavedName == "" {
		contact.SavedName = info.FirstName
	}
	return contact, lookupErr
}

// phoneNumber finds the phone-number JID for a message sender, mapping LIDs
// through the alternate sender or the LID store.
func (e *Engine) phoneNumber(ctx context.Context, src types.MessageSource) (types.JID, error) {
	sender := src.Sender.ToNonAD()
	switch {
	case sender.Server == types.DefaultUserServer:
		return sender, nil
	case src.SenderAlt.Server == types.DefaultUserServer:
		return src.SenderAlt.ToNonAD(), nil
	case sender.Server == types.HiddenUserServer:
		pn, err := e.client.Store.LIDs.GetPNForLID(ctx, sender)
		if err != nil {
			return types.JID{}, fmt.Errorf("lid lookup: %w", err)
		}
		if pn.IsEmpty() {
			return types.JID{}, fmt.Errorf("no phone number known for %s", sender)
		}
		return pn, nil
	}
	return types.JID{}, fmt.Errorf("sender %s has no phone number", sender)
}
