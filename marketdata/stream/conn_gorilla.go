package stream

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

type gorillaWebsocketConn struct {
	conn *websocket.Conn
}

// newGorillaWebsocketConn creates a new gorilla websocket connection
func newGorillaWebsocketConn(ctx context.Context, u url.URL, sessionToken string) (conn, error) {
	header := http.Header{}
	if sessionToken != "" {
		header.Set("Cookie", "sessionid="+sessionToken)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout:  3 * time.Second,
		EnableCompression: true,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, err
	}

	return &gorillaWebsocketConn{conn: conn}, nil
}

// close closes the websocket connection
func (c *gorillaWebsocketConn) close() error {
	return c.conn.Close()
}

// ping sends a ping to the client
func (c *gorillaWebsocketConn) ping(_ context.Context) error {
	return c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(pongWait))
}

// readMessage blocks until it reads a single message
func (c *gorillaWebsocketConn) readMessage(_ context.Context) (data []byte, err error) {
	_, data, err = c.conn.ReadMessage()
	return data, err
}

// writeMessage writes a single message
func (c *gorillaWebsocketConn) writeMessage(_ context.Context, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
