package relay

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wagateway/internal/bus"
	"wagateway/internal/domain"
)

// syncBuffer guards a bytes.Buffer written by the dispatcher goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func TestDispatcher_ProcessesInboundAndDrains(t *testing.T) {
	r, f := &fakeResponder{}, &fakeForwarder{}
	events := bus.New(10, testLogger())
	var qrOut syncBuffer

	d := NewDispatcher(DispatcherConfig{
		Events:     events.Subscribe(),
		Pipeline:   newTestPipeline(r, f, ""),
		GatewayURL: "http://localhost:3000",
		QROut:      &qrOut,
		Logger:     testLogger(),
	})

	events.Publish(bus.NewTokenIssued("2@token,key,identity,adv"))
	events.Publish(bus.NewReady())
	events.Publish(bus.NewInbound(directMessage("uno")))
	events.Publish(bus.NewInbound(directMessage("dos")))
	events.Close()

	done := make(chan struct{})
	go func() {
		d.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not return after bus closed")
	}

	assert.Len(t, f.Payloads(), 2, "Run waits for in-flight messages")
	assert.Greater(t, qrOut.Len(), 0, "QR should be printed when a token is issued")
}

func TestDispatcher_RelaysQueuedMessagesAfterCancel(t *testing.T) {
	r, f := &fakeResponder{}, &fakeForwarder{}
	events := bus.New(10, testLogger())
	d := NewDispatcher(DispatcherConfig{
		Events:   events.Subscribe(),
		Pipeline: newTestPipeline(r, f, ""),
		Logger:   testLogger(),
	})

	for _, body := range []string{"uno", "dos", "tres", "cuatro", "cinco"} {
		events.Publish(bus.NewInbound(directMessage(body)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	events.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not return after bus closed")
	}
	assert.Len(t, f.Payloads(), 5, "every queued message is relayed during shutdown")
}

func TestDispatcher_KeepsConsumingUntilBusCloses(t *testing.T) {
	f := &fakeForwarder{}
	events := bus.New(1, testLogger())
	d := NewDispatcher(DispatcherConfig{
		Events:   events.Subscribe(),
		Pipeline: newTestPipeline(&fakeResponder{}, f, ""),
		Logger:   testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	cancel()

	// Messages arriving while the session disconnects are still relayed.
	events.Publish(bus.NewInbound(directMessage("tarde")))

	select {
	case <-done:
		t.Fatal("dispatcher stopped before the bus closed")
	case <-time.After(50 * time.Millisecond):
	}

	events.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not return after bus closed")
	}
	require.Len(t, f.Payloads(), 1)
	assert.Equal(t, "tarde", f.Payloads()[0].Content)
}

func TestDispatcher_LoggedOutAnnouncesNewPairing(t *testing.T) {
	var logs syncBuffer
	events := bus.New(1, testLogger())
	d := NewDispatcher(DispatcherConfig{
		Events:   events.Subscribe(),
		Pipeline: newTestPipeline(&fakeResponder{}, &fakeForwarder{}, ""),
		Logger:   slog.New(slog.NewTextHandler(&logs, nil)),
	})
	events.Publish(bus.NewLoggedOut())
	events.Close()
	d.Run(context.Background())

	assert.Contains(t, logs.String(), "a new QR code will be issued")
}

func TestDispatcher_NoQRWriter(t *testing.T) {
	events := bus.New(2, testLogger())
	d := NewDispatcher(DispatcherConfig{
		Events:   events.Subscribe(),
		Pipeline: newTestPipeline(&fakeResponder{}, &fakeForwarder{}, ""),
		Logger:   testLogger(),
	})
	events.Publish(bus.NewTokenIssued("tok"))
	events.Publish(bus.NewLoggedOut())
	events.Close()

	require.NotPanics(t, func() { d.Run(context.Background()) })
}

var _ domain.Responder = (*fakeResponder)(nil)
