package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/czerwonk/delay_tracker/sampler"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second // must be less than pongWait
	sendBuffer = 16
)

// stream pushes every committed snapshot to the connected websocket clients.
type stream struct {
	source   snapshotter
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	closed  bool
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newStream(source snapshotter) *stream {
	return &stream{
		source:  source,
		clients: make(map[*streamClient]struct{}),
	}
}

// publish never blocks; a client which can't keep up misses snapshots.
func (st *stream) publish(snap sampler.Snapshot) {
	b, err := json.Marshal(snap)
	if err != nil {
		log.Errorf("could not encode snapshot: %v", err)
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	for c := range st.clients {
		select {
		case c.send <- b:
		default:
			log.Debugf("dropping snapshot for slow client %s", c.conn.RemoteAddr())
		}
	}
}

func (st *stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := st.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("websocket upgrade failed: %v", err)
		return
	}

	c := &streamClient{conn: conn, send: make(chan []byte, sendBuffer)}
	if b, err := json.Marshal(st.source.Snapshot()); err == nil {
		c.send <- b
	}

	if !st.register(c) {
		conn.Close()
		return
	}

	go c.writePump()
	c.readPump()
	st.unregister(c)
}

func (st *stream) register(c *streamClient) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed {
		return false
	}
	st.clients[c] = struct{}{}
	log.Debugf("websocket client %s connected", c.conn.RemoteAddr())

	return true
}

func (st *stream) unregister(c *streamClient) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.clients[c]; !ok {
		return
	}
	delete(st.clients, c)
	close(c.send)
	log.Debugf("websocket client %s disconnected", c.conn.RemoteAddr())
}

func (st *stream) close() {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.closed = true
	for c := range st.clients {
		delete(st.clients, c)
		close(c.send)
	}
}

// readPump discards incoming messages and returns when the connection is gone.
func (c *streamClient) readPump() {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *streamClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
