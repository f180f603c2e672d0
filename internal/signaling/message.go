package signaling

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Frame types.
const (
	msgTypeHello = "hello"
	msgTypeAuth  = "auth"
	msgTypeClose = "close"
)

// hello is the only unencrypted frame. Each side sends its session public key.
type hello struct {
	Type string `cbor:"type"`
	Key  []byte `cbor:"key"`
}

// message is the plaintext of an encrypted frame. Task messages carry the
// task message type in Type and its payload in Data.
type message struct {
	Type   string         `cbor:"type"`
	Task   string         `cbor:"task,omitempty"`
	Data   map[string]any `cbor:"data,omitempty"`
	Reason uint16         `cbor:"reason,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("signaling: CBOR encoder initialization failed: " + err.Error())
	}
	// Payload maps are handed to the task as map[string]any.
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("signaling: CBOR decoder initialization failed: " + err.Error())
	}
}

func encode(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}

func decodeMessage(data []byte) (message, error) {
	var msg message
	if err := decMode.Unmarshal(data, &msg); err != nil {
		return message{}, fmt.Errorf("decode frame: %w", err)
	}
	if msg.Type == "" {
		return message{}, fmt.Errorf("decode frame: missing type")
	}
	return msg, nil
}
