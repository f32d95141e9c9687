package hub

import (
	"encoding/json"

	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/pkg/response"
)

// Frame types written to clients.
const (
	FrameEvent = "event"
	FrameAck   = "ack"
)

// Frame is one outbound websocket message.
type Frame struct {
	Type     string             `json:"type"`
	ID       string             `json:"id,omitempty"`
	Event    string             `json:"event,omitempty"`
	Data     interface{}        `json:"data,omitempty"`
	Response *response.Response `json:"response,omitempty"`
}

// EncodeEvent renders ev as an event frame.
func EncodeEvent(ev domain.Event) ([]byte, error) {
	return json.Marshal(Frame{Type: FrameEvent, Event: ev.Name, Data: ev.Data})
}

// EncodeAck renders resp as the ack for request id.
func EncodeAck(id string, resp response.Response) ([]byte, error) {
	return json.Marshal(Frame{Type: FrameAck, ID: id, Response: &resp})
}
