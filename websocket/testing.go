package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// NewTestingEnv starts a server handling connections with newHandler and
// returns a client connected to it.
func NewTestingEnv(t *testing.T, newHandler func() Handler) (*websocket.Conn, func()) {
	var mutex sync.Mutex
	logger := t.Log

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}

	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})

	errors.Encoder = json.Marshal

	server := httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			handler := newHandler()
			defer handler.Close()

			Handle(context.Background(), conn, handler)
		},
	})

	config, err := websocket.NewConfig(
		strings.ReplaceAll(server.URL, "http://", "ws://"),
		"http://localhost",
	)
	if err != nil {
		t.Fatalf("error initializing web socket: %s", err)
	}

	config.Header.Set("User-Agent", "ted")
	config.Header.Set("X-Forwarded-For", "192.0.0.0")
	config.Header.Set(HeaderClientID, uuid.NewString())

	conn, err := websocket.DialConfig(config)
	if err != nil {
		t.Fatalf("error dialing web socket: %s", err)
	}

	return conn, func() {
		conn.Close()
		server.Close()

		mutex.Lock()
		defer mutex.Unlock()
		logger = nil
	}
}

// SendMsg sends msg encoded as JSON on conn.
func SendMsg(conn *websocket.Conn, msg Msg) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return websocket.Message.Send(conn, data)
}

// ReceiveMsg reads the next JSON message from conn.
func ReceiveMsg(conn *websocket.Conn) (Msg, error) {
	var data []byte
	if err := websocket.Message.Receive(conn, &data); err != nil {
		return Msg{}, err
	}

	var msg Msg
	err := json.Unmarshal(data, &msg)
	return msg, err
}
