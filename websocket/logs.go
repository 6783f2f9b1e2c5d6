package websocket

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

// HandlerWithLogs decorates h with connection logs and a periodic summary of
// the received message types.
func HandlerWithLogs(h Handler, summaryInterval time.Duration) Handler {
	ctx, cancel := context.WithCancel(context.Background())

	handler := &handlerWithLogs{
		Handler:            h,
		summaryInterval:    summaryInterval,
		closeSummaryWorker: cancel,
		counter:            make(map[string]int),
	}

	go handler.startSummaryWorker(ctx)
	return handler
}

type handlerWithLogs struct {
	Handler

	userAgent     string
	xForwardedFor string

	summaryInterval    time.Duration
	closeSummaryWorker func()
	counterMutex       sync.Mutex
	counter            map[string]int
}

func (h *handlerWithLogs) HandleConnect(conn *websocket.Conn) {
	h.Handler.HandleConnect(conn)

	req := conn.Request()
	h.userAgent = req.UserAgent()
	h.xForwardedFor = req.Header.Get("X-Forwarded-For")

	logs.WithClientID(h.GetClientID()).
		WithTag("user_agent", h.userAgent).
		WithTag("x_forwarded_for", h.xForwardedFor).
		Info("new viewport client is connected")
}

func (h *handlerWithLogs) HandleViewport(ctx context.Context, respond ResponseSender, msg Msg) error {
	if msg.Box != nil {
		logs.WithClientID(h.GetClientID()).
			WithTag("request_id", msg.RequestID).
			WithTag("box", msg.Box.String()).
			WithTag("shape", msg.Shape).
			Debug("viewport query")
	}
	return h.Handler.HandleViewport(ctx, respond, msg)
}

func (h *handlerWithLogs) HandleTile(ctx context.Context, respond ResponseSender, msg Msg) error {
	if msg.Tile != nil {
		logs.WithClientID(h.GetClientID()).
			WithTag("request_id", msg.RequestID).
			WithTag("tile", msg.Tile.String()).
			WithTag("shape", msg.Shape).
			Debug("tile query")
	}
	return h.Handler.HandleTile(ctx, respond, msg)
}

func (h *handlerWithLogs) HandleDisconnect(err error) {
	h.Handler.HandleDisconnect(err)

	entry := logs.WithClientID(h.GetClientID()).
		WithTag("user_agent", h.userAgent)
	if err != nil && !errors.Is(err, context.Canceled) {
		entry = entry.WithTag("reason", err.Error())
	}
	entry.Info("viewport client disconnected")
}

func (h *handlerWithLogs) Receiver() Receiver {
	receive := h.Handler.Receiver()

	return func() (Msg, int, error) {
		msg, n, err := receive()
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			logs.WithClientID(h.GetClientID()).
				Warn(errors.New("receiving message failed").Wrap(err))
		} else if err == nil {
			logs.WithClientID(h.GetClientID()).
				WithTag("msg_type", msgTypeName(msg.Type)).
				WithTag("bytes", n).
				Debug("message received")
			h.incCounter(msgTypeName(msg.Type))
		}
		return msg, n, err
	}
}

func (h *handlerWithLogs) Sender() Sender {
	sender := h.Handler.Sender()

	return func(msg Msg) (int, error) {
		n, err := sender(msg)
		if err != nil && !errors.Is(err, net.ErrClosed) {
			logs.WithClientID(h.GetClientID()).
				WithTag("msg_type", msg.Type).
				Warn(errors.New("sending message failed").Wrap(err))
		} else if err == nil {
			logs.WithClientID(h.GetClientID()).
				WithTag("msg_type", msg.Type).
				WithTag("regions", len(msg.Regions)).
				WithTag("bytes", n).
				Debug("message sent")
		}
		return n, err
	}
}

func (h *handlerWithLogs) Close() {
	h.Handler.Close()
	h.closeSummaryWorker()
	h.logSummary()
}

func (h *handlerWithLogs) startSummaryWorker(ctx context.Context) {
	ticker := time.NewTicker(h.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			h.logSummary()
		}
	}
}

func (h *handlerWithLogs) incCounter(msgType string) {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	h.counter[msgType]++
}

func (h *handlerWithLogs) logSummary() {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	if len(h.counter) == 0 {
		return
	}

	entry := logs.WithClientID(h.GetClientID()).
		WithTag("time_interval", h.summaryInterval)

	for k, v := range h.counter {
		entry = entry.WithTag(k, v)
		delete(h.counter, k)
	}

	entry.Info("inbound message summary")
}
