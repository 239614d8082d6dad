package ws

import (
	"crypto/tls"
	"io"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"troczen.dev/pkg/utils/chk"
	"troczen.dev/pkg/utils/context"
	"troczen.dev/pkg/utils/errorf"
	"troczen.dev/pkg/utils/units"
)

// MaxMessageSize bounds the size of a single relay message. Events are
// limited to far less than this by relays themselves.
const MaxMessageSize = 4 * units.Mb

// Connection is an outbound client -> relay connection.
type Connection struct {
	conn *websocket.Conn
}

// NewConnection opens a websocket to a relay URL, negotiating
// permessage-deflate compression when the relay supports it.
func NewConnection(
	c context.T, url string, requestHeader http.Header,
	tlsConfig *tls.Config,
) (connection *Connection, err error) {
	opts := &websocket.DialOptions{
		HTTPHeader:      requestHeader,
		CompressionMode: websocket.CompressionContextTakeover,
	}
	if tlsConfig != nil {
		opts.HTTPClient = &http.Client{
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		}
	}
	var conn *websocket.Conn
	if conn, _, err = websocket.Dial(c, url, opts); err != nil {
		return
	}
	conn.SetReadLimit(MaxMessageSize)
	connection = &Connection{conn: conn}
	return
}

// WriteMessage dispatches a message through the Connection.
func (cn *Connection) WriteMessage(c context.T, data []byte) (err error) {
	if err = cn.conn.Write(c, websocket.MessageText, data); err != nil {
		return errorf.E("failed to write message: %w", err)
	}
	return
}

// ReadMessage picks up the next incoming message on a Connection and copies
// it into buf.
func (cn *Connection) ReadMessage(c context.T, buf io.Writer) (err error) {
	var rdr io.Reader
	if _, rdr, err = cn.conn.Reader(c); err != nil {
		if c.Err() != nil {
			return errorf.D("context canceled: %v", err)
		}
		return errorf.D("failed to advance frame: %v", err)
	}
	if _, err = io.Copy(buf, rdr); chk.T(err) {
		return errorf.E("failed to read message: %w", err)
	}
	return
}

// Ping sends a ping frame and waits for the pong, bounded so a dead peer
// cannot stall the write loop.
func (cn *Connection) Ping(c context.T) (err error) {
	ctx, cancel := context.Timeout(c, 10*time.Second)
	defer cancel()
	return cn.conn.Ping(ctx)
}

// Close the Connection.
func (cn *Connection) Close() (err error) {
	return cn.conn.Close(websocket.StatusNormalClosure, "")
}
