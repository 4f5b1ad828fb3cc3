package command

import (
	"strconv"
	"time"

	"github.com/ValentinKolb/mKV/resp"
)

// --------------------------------------------------------------------------
// Request Frame Factory Functions
// --------------------------------------------------------------------------
//
// The client library drives the protocol from the initiating side and
// builds its request frames through these factories. Keeping them next
// to the command parsers pins the two directions of the wire format to
// one file pair.

// PingFrame builds the frame for PING [msg].
func PingFrame(msg []byte) resp.Frame {
	if msg == nil {
		return resp.NewArray(resp.NewBulk([]byte("ping")))
	}
	return resp.NewArray(resp.NewBulk([]byte("ping")), resp.NewBulk(msg))
}

// GetFrame builds the frame for GET key.
func GetFrame(key string) resp.Frame {
	return resp.NewArray(resp.NewBulk([]byte("get")), resp.NewBulk([]byte(key)))
}

// SetFrame builds the frame for SET key value with an optional expiry.
// A whole-second expiry is encoded as EX, anything finer as PX.
func SetFrame(key string, value []byte, expire time.Duration) resp.Frame {
	elems := []resp.Frame{
		resp.NewBulk([]byte("set")),
		resp.NewBulk([]byte(key)),
		resp.NewBulk(value),
	}

	if expire > 0 {
		if expire%time.Second == 0 {
			elems = append(elems,
				resp.NewBulk([]byte("ex")),
				resp.NewBulk([]byte(strconv.FormatInt(int64(expire/time.Second), 10))))
		} else {
			elems = append(elems,
				resp.NewBulk([]byte("px")),
				resp.NewBulk([]byte(strconv.FormatInt(int64(expire/time.Millisecond), 10))))
		}
	}

	return resp.NewArray(elems...)
}

// PublishFrame builds the frame for PUBLISH channel message.
func PublishFrame(channel string, message []byte) resp.Frame {
	return resp.NewArray(
		resp.NewBulk([]byte("publish")),
		resp.NewBulk([]byte(channel)),
		resp.NewBulk(message))
}

// SubscribeFrame builds the frame for SUBSCRIBE channel [channel ...].
func SubscribeFrame(channels []string) resp.Frame {
	elems := make([]resp.Frame, 0, len(channels)+1)
	elems = append(elems, resp.NewBulk([]byte("subscribe")))
	for _, channel := range channels {
		elems = append(elems, resp.NewBulk([]byte(channel)))
	}
	return resp.NewArray(elems...)
}

// UnsubscribeFrame builds the frame for UNSUBSCRIBE [channel ...].
func UnsubscribeFrame(channels []string) resp.Frame {
	elems := make([]resp.Frame, 0, len(channels)+1)
	elems = append(elems, resp.NewBulk([]byte("unsubscribe")))
	for _, channel := range channels {
		elems = append(elems, resp.NewBulk([]byte(channel)))
	}
	return resp.NewArray(elems...)
}
