package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"oqt-web/internal/logger"
	"oqt-web/internal/viewer"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

var errClientGone = errors.New("websocket client gone")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 16 * 1024,
}

// 文档注释：单个页面视图的 websocket 连接
// 约束：只有 writeLoop 写连接；Emit 在会话协程中调用，连接关闭后返回 errClientGone 使会话退出。
type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func newWSClient(id string, conn *websocket.Conn) *wsClient {
	return &wsClient{id: id, conn: conn, send: make(chan []byte, 64), done: make(chan struct{})}
}

func (c *wsClient) Emit(p viewer.Patch) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	select {
	case c.send <- b:
		return nil
	case <-c.done:
		return errClientGone
	}
}

func (c *wsClient) stop() { c.once.Do(func() { close(c.done) }) }

func (c *wsClient) readLoop(ctx context.Context, events chan<- viewer.Event) {
	c.conn.SetReadLimit(64 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.L().Debug("ws_read_error", "session", c.id, "err", err)
			}
			return
		}
		var ev viewer.Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			logger.L().Debug("ws_bad_event", "session", c.id, "err", err)
			continue
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (c *wsClient) writeLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker((pongWait * 9) / 10)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.L().Debug("ws_write_error", "session", c.id, "err", err)
				c.stop()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.stop()
				return
			}
		}
	}
}

// 文档注释：会话 websocket
// 背景：每个连接一个 viewer.Session；读协程把事件送入会话循环，写协程串行写出补丁并定期 ping。
// 约束：浏览器关闭连接时事件通道关闭，会话退出并取消进行中的报告请求。
func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L().Warn("ws_upgrade_error", "err", err)
		return
	}
	id := uuid.NewString()
	c := newWSClient(id, conn)
	c.wg.Add(1)
	go c.writeLoop()

	ctx, cancel := context.WithCancel(r.Context())
	events := make(chan viewer.Event)
	go func() {
		defer close(events)
		c.readLoop(ctx, events)
	}()

	sess := viewer.New(viewer.Config{
		ID:       id,
		Regions:  s.Regions,
		Catalog:  s.Catalog,
		Fetcher:  s.fetcher(r),
		Renderer: s.Renderer,
		Emitter:  c,
	})
	logger.L().Info("session_open", "session", id, "visitor", getVisitorIP(r))
	err = sess.Run(ctx, events)
	cancel()
	c.stop()
	c.wg.Wait()
	_ = conn.Close()
	logger.L().Info("session_close", "session", id, "search", sess.Search(), "err", err)
}
