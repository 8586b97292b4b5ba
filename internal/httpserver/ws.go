// apps/go-server/internal/httpserver/ws.go
//
// Websocket transport. One client per socket:
//   - readPump decodes frames and hands them to dispatch.
//   - writePump drains the send buffer and pings on a timer.
//
// A socket that misses MAX_MISSED_PONGS+1 ping periods times out its read
// deadline and goes down the same path as a close frame.

package httpserver

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/snakeword/apps/go-server/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 8 << 10
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// checkOrigin accepts non-browser clients, CLIENT_ORIGIN and same-host pages.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == clientOrigin() || clientOrigin() == "*" {
		return true
	}
	return strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://") == r.Host
}

// client is one websocket connection. It implements room.Conn.
type client struct {
	id        string
	accountID string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	once      sync.Once
	log       zerolog.Logger

	registered bool // touched by readPump only
}

// Send queues frame without blocking; a full buffer drops it.
func (c *client) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close stops the write pump, which closes the socket.
func (c *client) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *client) reply(v any) {
	if b := protocol.Encode(v); b != nil {
		c.Send(b)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	acct := s.accountFor(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	c.log = log.With().Str("conn", c.id).Str("remote", r.RemoteAddr).Logger()
	if acct != nil {
		c.accountID = acct.ID
		c.log = c.log.With().Str("user", acct.Username).Logger()
	}
	c.log.Debug().Msg("websocket opened")

	go s.writePump(c)
	s.readPump(c)
}

func (s *Server) readDeadline() time.Duration {
	return s.pingInterval * time.Duration(s.maxMissedPongs+1)
}

func (s *Server) readPump(c *client) {
	defer s.hangUp(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(s.readDeadline()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.readDeadline()))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("websocket read")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(s.readDeadline()))

		in, err := protocol.Decode(msg)
		if err != nil {
			c.log.Debug().Err(err).Msg("bad frame")
			c.reply(protocol.NewError("Invalid message format"))
			continue
		}
		s.dispatch(c, in)
		select {
		case <-c.done:
			return
		default:
		}
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug().Err(err).Msg("websocket write")
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

// hangUp runs once per socket when its read side ends.
func (s *Server) hangUp(c *client) {
	c.Close()
	if !c.registered {
		return
	}
	s.rooms.RemovePlayer(c.id)
	s.rooms.Broadcast(protocol.Encode(protocol.NewPlayerLeft(c.id)), c.id)
	c.log.Debug().Msg("websocket closed")
}
