package websocket

import (
	"github.com/aukilabs/tileindex/models"
	"github.com/aukilabs/tileindex/quadtree"
	"github.com/aukilabs/tileindex/tile"
)

const (
	MsgTypePing     = "ping"
	MsgTypePong     = "pong"
	MsgTypeViewport = "viewport"
	MsgTypeTile     = "tile"
	MsgTypeRegions  = "regions"
	MsgTypeError    = "error"

	ErrTypeBadRequest      = "bad_request"
	ErrTypeUnknownMsg      = "unknown_msg_type"
	ErrTypeInvalidMsg      = "invalid_msg"
	ErrTypeFeatureDisabled = "feature_disabled"

	msgTypeUnknown = "unknown"
)

// msgTypeName returns the message type to use in metric labels and logs.
// Types sent by clients are not trusted.
func msgTypeName(msgType string) string {
	switch msgType {
	case MsgTypePing,
		MsgTypePong,
		MsgTypeViewport,
		MsgTypeTile,
		MsgTypeRegions,
		MsgTypeError:
		return msgType
	default:
		return msgTypeUnknown
	}
}

// Msg is a JSON message exchanged with viewport clients.
//
// Clients send ping, viewport and tile messages. The server answers with
// pong, regions or error messages carrying the request id of the message they
// answer.
type Msg struct {
	Type      string `json:"type"`
	RequestID uint32 `json:"request_id,omitempty"`

	// The viewport of a viewport message.
	Box *quadtree.Box `json:"box,omitempty"`

	// The tile of a tile message.
	Tile *tile.ID `json:"tile,omitempty"`

	// Restricts a query to regions at or below the node of the queried box.
	Shape bool `json:"shape,omitempty"`

	// The maximum number of regions to return.
	Limit int `json:"limit,omitempty"`

	Regions   []*models.Region `json:"regions,omitempty"`
	Completed bool             `json:"completed,omitempty"`

	ErrorType string `json:"error_type,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Receiver reads the next message from a connection. It returns the number
// of bytes read.
type Receiver func() (Msg, int, error)

// Sender writes a message to a connection. It returns the number of bytes
// written.
type Sender func(Msg) (int, error)

// ResponseSender queues messages to be sent to the connected client.
type ResponseSender interface {
	Send(Msg)
}
