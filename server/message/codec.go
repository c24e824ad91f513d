package message

import (
	"encoding/json"

	"github.com/juju/errors"
	"github.com/oxtoacart/bpool"
)

type Serializer interface {
	Serialize(msg Message) ([]byte, error)
}

type Deserializer interface {
	Deserialize(data []byte) (Message, error)
}

// Codec converts between Message envelopes and wire payloads. Any
// alternate wire format must preserve the four envelope fields and the
// done semantics so that routing code stays format-agnostic.
type Codec interface {
	Serializer
	Deserializer
}

// ByteSerializer is the default JSON codec. WebSocket transports use it
// directly, one envelope per frame.
type ByteSerializer struct{}

var _ Codec = ByteSerializer{}

func (s ByteSerializer) Serialize(msg Message) ([]byte, error) {
	b, err := json.Marshal(msg)

	return b, errors.Annotate(err, "serialize")
}

// Deserialize returns a zero Message on malformed payloads. The caller
// logs the error and lets routing no-op on the empty route.
func (s ByteSerializer) Deserialize(data []byte) (msg Message, err error) {
	err = json.Unmarshal(data, &msg)

	return msg, errors.Annotate(err, "deserialize")
}

const codecBufferPoolSize = 32

// DelimitedCodec is the stream-transport codec. Serialized envelopes are
// terminated with the configured delimiter; the receiving side must run a
// framing buffer configured with the identical delimiter.
type DelimitedCodec struct {
	inner     ByteSerializer
	delimiter []byte
	pool      *bpool.BufferPool
}

var _ Codec = &DelimitedCodec{}

func NewDelimitedCodec(delimiter []byte) *DelimitedCodec {
	return &DelimitedCodec{
		delimiter: delimiter,
		pool:      bpool.NewBufferPool(codecBufferPoolSize),
	}
}

func (c *DelimitedCodec) Delimiter() []byte {
	return c.delimiter
}

func (c *DelimitedCodec) Serialize(msg Message) ([]byte, error) {
	b, err := c.inner.Serialize(msg)
	if err != nil {
		return nil, errors.Trace(err)
	}

	buf := c.pool.Get()
	defer c.pool.Put(buf)

	buf.Write(b)
	buf.Write(c.delimiter)

	ret := make([]byte, buf.Len())
	copy(ret, buf.Bytes())

	return ret, nil
}

// Deserialize expects a single frame with the delimiter already stripped
// by the framing buffer.
func (c *DelimitedCodec) Deserialize(data []byte) (Message, error) {
	msg, err := c.inner.Deserialize(data)

	return msg, errors.Trace(err)
}
