package spool

import (
	"time"

	"github.com/tinylib/msgp/msgp"
)

// record is a queued message as stored by FileSpool and BoltSpool.
type record struct {
	ID       string
	Queued   time.Time
	Attempts int

	// Data is the rendered message.
	Data []byte
}

var (
	_ msgp.Marshaler   = (*record)(nil)
	_ msgp.Unmarshaler = (*record)(nil)
	_ msgp.Sizer       = (*record)(nil)
)

// MarshalMsg appends the record to b as a MessagePack map.
func (z *record) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, z.Msgsize())
	o = msgp.AppendMapHeader(o, 4)
	o = msgp.AppendString(o, "id")
	o = msgp.AppendString(o, z.ID)
	o = msgp.AppendString(o, "queued")
	o = msgp.AppendTime(o, z.Queued)
	o = msgp.AppendString(o, "attempts")
	o = msgp.AppendInt(o, z.Attempts)
	o = msgp.AppendString(o, "data")
	o = msgp.AppendBytes(o, z.Data)
	return o, nil
}

// UnmarshalMsg reads the record from the start of bts and returns what is
// left. Unknown keys are skipped.
func (z *record) UnmarshalMsg(bts []byte) ([]byte, error) {
	n, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, msgp.WrapError(err)
	}

	for ; n > 0; n-- {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, msgp.WrapError(err)
		}

		switch msgp.UnsafeString(field) {
		case "id":
			z.ID, bts, err = msgp.ReadStringBytes(bts)
		case "queued":
			z.Queued, bts, err = msgp.ReadTimeBytes(bts)
		case "attempts":
			z.Attempts, bts, err = msgp.ReadIntBytes(bts)
		case "data":
			z.Data, bts, err = msgp.ReadBytesBytes(bts, z.Data)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, msgp.WrapError(err, string(field))
		}
	}

	return bts, nil
}

// Msgsize returns an upper bound on the size of the encoded record.
func (z *record) Msgsize() int {
	return msgp.MapHeaderSize +
		msgp.StringPrefixSize + 2 + msgp.StringPrefixSize + len(z.ID) +
		msgp.StringPrefixSize + 6 + msgp.TimeSize +
		msgp.StringPrefixSize + 8 + msgp.IntSize +
		msgp.StringPrefixSize + 4 + msgp.BytesPrefixSize + len(z.Data)
}
