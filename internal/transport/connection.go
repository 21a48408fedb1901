package transport

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lox/cardroom/internal/game"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 8192

	// Upper bound on a single table command.
	commandTimeout = 10 * time.Second
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSlowConsumer     = errors.New("connection send buffer full")
)

// Connection is one websocket client.
type Connection struct {
	conn    *websocket.Conn
	server  *Server
	send    chan *Message
	session string
	logger  *log.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu      sync.RWMutex
	player  string
	seated  map[string]bool
	watches map[string]bool
}

func newConnection(conn *websocket.Conn, s *Server) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	session := uuid.NewString()
	return &Connection{
		conn:    conn,
		server:  s,
		send:    make(chan *Message, 256),
		session: session,
		logger:  s.logger.WithPrefix("conn").With("session", session),
		ctx:     ctx,
		cancel:  cancel,
		seated:  make(map[string]bool),
		watches: make(map[string]bool),
	}
}

func (c *Connection) start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection. It is safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// Send queues msg without blocking.
func (c *Connection) Send(msg *Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrSlowConsumer
	}
}

// Player returns the identified player, if any.
func (c *Connection) Player() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.player
}

func (c *Connection) watching(tableID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.watches[tableID]
}

func (c *Connection) watch(tableID string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.watches[tableID] = true
	} else {
		delete(c.watches, tableID)
	}
}

func (c *Connection) seat(tableID string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.seated[tableID] = true
	} else {
		delete(c.seated, tableID)
	}
}

func (c *Connection) seatedTables() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.seated))
}

func (c *Connection) readPump() {
	defer func() {
		_ = c.Close()
		c.server.unregister(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("Failed to write message", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "player", c.Player())

	ctx, cancel := context.WithTimeout(c.ctx, commandTimeout)
	defer cancel()

	switch msg.Type {
	case TypeHello:
		var data HelloData
		if !c.decode(msg, &data) {
			return
		}
		c.hello(msg, data)
	case TypeTables:
		d := c.server.directory()
		if d == nil {
			c.reply(msg, TypeTables, []any{})
			return
		}
		c.reply(msg, TypeTables, d.List())
	case TypeWatch:
		var data TableData
		if !c.decode(msg, &data) {
			return
		}
		c.watchTable(ctx, msg, data.Table)
	case TypeJoin:
		var data JoinData
		if !c.decode(msg, &data) || !c.identified(msg) {
			return
		}
		c.join(ctx, msg, data)
	case TypeLeave:
		var data TableData
		if !c.decode(msg, &data) || !c.identified(msg) {
			return
		}
		c.leave(ctx, msg, data.Table)
	case TypeAction:
		var data ActionData
		if !c.decode(msg, &data) || !c.identified(msg) {
			return
		}
		c.act(ctx, msg, data)
	case TypeAutobet:
		var data AutobetData
		if !c.decode(msg, &data) || !c.identified(msg) {
			return
		}
		c.autobet(ctx, msg, data)
	default:
		c.sendError(msg, "unknown_message", "unknown message type "+string(msg.Type))
	}
}

func (c *Connection) hello(msg *Message, data HelloData) {
	if data.Player == "" {
		c.sendError(msg, "invalid_message", "player is required")
		return
	}
	c.mu.Lock()
	current := c.player
	if current == "" {
		c.player = data.Player
	}
	c.mu.Unlock()
	if current != "" && current != data.Player {
		c.sendError(msg, "already_identified", "connection already belongs to "+current)
		return
	}
	c.logger.Info("Player identified", "player", data.Player)
	c.reply(msg, TypeWelcome, WelcomeData{Player: data.Player, Session: c.session})
}

func (c *Connection) watchTable(ctx context.Context, msg *Message, tableID string) {
	tbl, err := c.server.lookup(tableID)
	if err != nil {
		c.result(msg, false, err)
		return
	}
	c.watch(tableID, true)
	c.result(msg, true, nil)
	c.sendState(ctx, tbl)
}

func (c *Connection) join(ctx context.Context, msg *Message, data JoinData) {
	tbl, err := c.server.lookup(data.Table)
	if err != nil {
		c.result(msg, false, err)
		return
	}
	// Watch first so no update between the join and the reply is lost.
	wasWatching := c.watching(data.Table)
	c.watch(data.Table, true)
	if err := tbl.Join(ctx, c.Player(), data.BuyIn); err != nil {
		if !wasWatching {
			c.watch(data.Table, false)
		}
		c.result(msg, false, err)
		return
	}
	c.seat(data.Table, true)
	c.result(msg, true, nil)
	c.sendState(ctx, tbl)
}

func (c *Connection) leave(ctx context.Context, msg *Message, tableID string) {
	tbl, err := c.server.lookup(tableID)
	if err != nil {
		c.result(msg, false, err)
		return
	}
	err = tbl.Leave(ctx, c.Player())
	c.seat(tableID, false)
	c.watch(tableID, false)
	c.result(msg, err == nil, err)
}

func (c *Connection) act(ctx context.Context, msg *Message, data ActionData) {
	tbl, err := c.server.lookup(data.Table)
	if err != nil {
		c.result(msg, false, err)
		return
	}
	applied, err := tbl.Submit(ctx, c.Player(), game.Action{Type: data.Action, Amount: data.Amount})
	c.result(msg, applied, err)
}

func (c *Connection) autobet(ctx context.Context, msg *Message, data AutobetData) {
	tbl, err := c.server.lookup(data.Table)
	if err != nil {
		c.result(msg, false, err)
		return
	}
	err = tbl.SetAutobet(ctx, c.Player(), data.Amount, data.Hands)
	c.result(msg, err == nil, err)
}

func (c *Connection) sendState(ctx context.Context, tbl *game.Controller) {
	v, err := tbl.ViewFor(ctx, c.Player())
	if err != nil {
		return
	}
	out, err := NewMessage(TypeState, v)
	if err != nil {
		return
	}
	_ = c.Send(out)
}

func (c *Connection) identified(msg *Message) bool {
	if c.Player() != "" {
		return true
	}
	c.sendError(msg, "not_identified", "send hello first")
	return false
}

func (c *Connection) decode(msg *Message, v any) bool {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		c.sendError(msg, "invalid_message", "failed to parse "+string(msg.Type)+" data")
		return false
	}
	return true
}

func (c *Connection) result(msg *Message, applied bool, err error) {
	data := ResultData{Applied: applied}
	if err != nil {
		data.Code = game.ReasonCode(err)
		data.Message = err.Error()
	}
	c.reply(msg, TypeResult, data)
}

func (c *Connection) reply(req *Message, t MessageType, data any) {
	out, err := NewMessage(t, data)
	if err != nil {
		c.logger.Error("Failed to encode reply", "type", t, "error", err)
		return
	}
	out.RequestID = req.RequestID
	_ = c.Send(out)
}

func (c *Connection) sendError(req *Message, code, message string) {
	c.reply(req, TypeError, ErrorData{Code: code, Message: message})
}
