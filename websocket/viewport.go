package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/tileindex/featureflag"
	"github.com/aukilabs/tileindex/models"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// HeaderClientID is the HTTP header a client can use to identify itself.
const HeaderClientID = "X-Client-ID"

// ViewportHandler answers viewport and tile queries from a connected client
// with the regions of a store.
type ViewportHandler struct {
	Store             *models.RegionStore
	FeatureFlags      featureflag.FeatureFlag
	ClientIdleTimeout time.Duration

	// The maximum number of regions sent for a single query. Unlimited when
	// zero.
	MaxQueryLimit int

	conn     *websocket.Conn
	clientID string
}

func (h *ViewportHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn

	h.clientID = conn.Request().Header.Get(HeaderClientID)
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}
}

func (h *ViewportHandler) HandleDisconnect(err error) {
}

func (h *ViewportHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	respond.Send(Msg{
		Type:      MsgTypePong,
		RequestID: msg.RequestID,
	})
	return nil
}

func (h *ViewportHandler) HandleViewport(ctx context.Context, respond ResponseSender, msg Msg) error {
	if msg.Box == nil {
		respondError(respond, msg, errors.New("viewport message without box").
			WithType(ErrTypeBadRequest))
		return nil
	}

	if err := h.checkShape(msg); err != nil {
		respondError(respond, msg, err)
		return nil
	}

	query := h.Store.Query
	if msg.Shape {
		query = h.Store.QueryShape
	}

	regions, completed, err := query(*msg.Box, h.limit(msg))
	if err != nil {
		respondError(respond, msg, err)
		return nil
	}

	respondRegions(respond, msg, regions, completed)
	return nil
}

func (h *ViewportHandler) HandleTile(ctx context.Context, respond ResponseSender, msg Msg) error {
	if msg.Tile == nil {
		respondError(respond, msg, errors.New("tile message without tile").
			WithType(ErrTypeBadRequest))
		return nil
	}

	if err := h.checkShape(msg); err != nil {
		respondError(respond, msg, err)
		return nil
	}

	regions, completed, err := h.Store.QueryTile(*msg.Tile, msg.Shape, h.limit(msg))
	if err != nil {
		respondError(respond, msg, err)
		return nil
	}

	respondRegions(respond, msg, regions, completed)
	return nil
}

func (h *ViewportHandler) Receiver() Receiver {
	return func() (Msg, int, error) {
		var data []byte
		if err := websocket.Message.Receive(h.conn, &data); err != nil {
			return Msg{}, 0, err
		}

		var msg Msg
		if err := json.Unmarshal(data, &msg); err != nil {
			return Msg{}, len(data), errors.New("decoding message failed").
				WithType(ErrTypeInvalidMsg).
				Wrap(err)
		}
		return msg, len(data), nil
	}
}

func (h *ViewportHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		data, err := json.Marshal(msg)
		if err != nil {
			return 0, errors.New("encoding message failed").
				WithTag("msg_type", msg.Type).
				Wrap(err)
		}

		if err := websocket.Message.Send(h.conn, data); err != nil {
			return 0, err
		}
		return len(data), nil
	}
}

func (h *ViewportHandler) Close() {
}

func (h *ViewportHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *ViewportHandler) GetClientID() string {
	return h.clientID
}

func (h *ViewportHandler) checkShape(msg Msg) error {
	if msg.Shape && h.FeatureFlags.IsSet(featureflag.FlagDisableShapeSearch) {
		return errors.New("shape search is disabled").
			WithType(ErrTypeFeatureDisabled).
			WithTag("flag", featureflag.FlagDisableShapeSearch)
	}
	return nil
}

func (h *ViewportHandler) limit(msg Msg) int {
	switch {
	case h.MaxQueryLimit <= 0:
		return msg.Limit
	case msg.Limit <= 0:
		return h.MaxQueryLimit
	default:
		return min(msg.Limit, h.MaxQueryLimit)
	}
}

func respondRegions(respond ResponseSender, msg Msg, regions []*models.Region, completed bool) {
	respond.Send(Msg{
		Type:      MsgTypeRegions,
		RequestID: msg.RequestID,
		Regions:   regions,
		Completed: completed,
	})
}

func respondError(respond ResponseSender, msg Msg, err error) {
	respond.Send(Msg{
		Type:      MsgTypeError,
		RequestID: msg.RequestID,
		ErrorType: errors.Type(err),
		Error:     err.Error(),
	})
}
