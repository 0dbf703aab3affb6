package coordination

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Think-Big-Media/warroom-healthguard/pkg/knowledge"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/metrics"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/session"
	"github.com/Think-Big-Media/warroom-healthguard/pkg/shared/logging"
)

// Defaults per spec §4.9.
const (
	DefaultHeartbeatInterval = 30 * time.Second
	connectionTimeoutFactor  = 2
	writeWait                = 10 * time.Second
	sendBufferSize           = 32
)

// ForceChecker is the probe session's imperative entry point, as seen by
// the bus: treating an inbound performanceViolation as an ordinary
// force-check request never reaches into session internals directly.
type ForceChecker interface {
	ForceCheck(ctx context.Context) (*session.Verdict, error)
}

// KnowledgeRecorder is the knowledge store's inbound half, as seen by the
// bus: a peer-reported fixApplied updates the same learned-pattern map the
// local auto-fix engine writes to, per spec §8 scenario 5.
type KnowledgeRecorder interface {
	Record(key, action string, success bool, metadata knowledge.Metadata) knowledge.Pattern
	PublishSnapshot(ctx context.Context, pattern knowledge.Pattern, nowEpoch int64) error
}

// peer is one connected WebSocket client.
type peer struct {
	conn    *websocket.Conn
	agentID string
	name    string
	send    chan []byte

	mu           sync.Mutex
	lastActivity time.Time
}

// Bus is the coordination bus (spec component C9): a chi-routed HTTP
// server upgrading a single endpoint to WebSocket, relaying a closed set
// of JSON envelopes between connected peers and the local supervisor. It
// never calls back into the probe session except through ForceChecker.
type Bus struct {
	router            chi.Router
	upgrader          websocket.Upgrader
	logger            *logrus.Entry
	heartbeatInterval time.Duration
	forceChecker      ForceChecker
	knowledge         KnowledgeRecorder

	mu    sync.Mutex
	peers map[string]*peer
}

// New builds a Bus. forceChecker may be nil, in which case an inbound
// performanceViolation is logged and dropped instead of triggering a
// force-check.
func New(heartbeatInterval time.Duration, forceChecker ForceChecker, logger *logrus.Logger) *Bus {
	if heartbeatInterval <= 0 {
		heartbeatInterval = DefaultHeartbeatInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	b := &Bus{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:            logger.WithField("component", "coordination_bus"),
		heartbeatInterval: heartbeatInterval,
		forceChecker:      forceChecker,
		peers:             make(map[string]*peer),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))
	r.Get("/healthz", b.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/status", b.handleStatus)
	r.Get("/ws", b.handleWebsocket)
	b.router = r

	return b
}

// Router exposes the bus's chi router for mounting under an HTTP server.
func (b *Bus) Router() chi.Router {
	return b.router
}

// SetKnowledgeRecorder wires the knowledge store in after construction, so
// an inbound peer fixApplied can update the same learned-pattern map the
// local auto-fix engine writes to.
func (b *Bus) SetKnowledgeRecorder(k KnowledgeRecorder) {
	b.knowledge = k
}

func (b *Bus) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (b *Bus) handleStatus(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	type peerStatus struct {
		AgentID      string    `json:"agentId"`
		Name         string    `json:"name"`
		LastActivity time.Time `json:"lastActivity"`
	}
	statuses := make([]peerStatus, 0, len(b.peers))
	for _, p := range b.peers {
		p.mu.Lock()
		statuses = append(statuses, peerStatus{AgentID: p.agentID, Name: p.name, LastActivity: p.lastActivity})
		p.mu.Unlock()
	}
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statuses)
}

func (b *Bus) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	p := &peer{conn: conn, send: make(chan []byte, sendBufferSize), lastActivity: time.Now()}
	if !b.handshake(p) {
		_ = conn.Close()
		return
	}

	b.mu.Lock()
	b.peers[p.agentID] = p
	metrics.SetCoordinationPeers(len(b.peers))
	b.mu.Unlock()

	b.logger.WithFields(logging.NewFields().Component("coordination").Operation("connect").
		Custom("agentId", p.agentID).Custom("name", p.name).ToLogrus()).Info("peer connected")

	go b.writePump(p)
	b.readPump(p)

	b.mu.Lock()
	delete(b.peers, p.agentID)
	metrics.SetCoordinationPeers(len(b.peers))
	b.mu.Unlock()
	close(p.send)
}

// handshake reads the first message off the connection and registers the
// peer's identity. A malformed first message fails the connection rather
// than registering a peer with no identity.
func (b *Bus) handshake(p *peer) bool {
	_, raw, err := p.conn.ReadMessage()
	if err != nil {
		return false
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false
	}

	var hs Handshake
	if len(env.Data) > 0 {
		_ = json.Unmarshal(env.Data, &hs)
	}
	if hs.AgentID == "" {
		hs.AgentID = env.AgentID
	}
	if hs.AgentID == "" {
		return false
	}

	p.agentID = hs.AgentID
	p.name = hs.Name
	p.lastActivity = time.Now()
	return true
}

// readPump is the peer's single reader goroutine: it owns p.conn.ReadMessage
// and dispatches every inbound envelope to handleInbound.
func (b *Bus) readPump(p *peer) {
	timeout := b.heartbeatInterval * connectionTimeoutFactor
	_ = p.conn.SetReadDeadline(time.Now().Add(timeout))
	p.conn.SetPongHandler(func(string) error {
		p.touch()
		return p.conn.SetReadDeadline(time.Now().Add(timeout))
	})

	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		p.touch()
		_ = p.conn.SetReadDeadline(time.Now().Add(timeout))

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			b.sendError(p, "malformed envelope")
			continue
		}
		b.handleInbound(p, env)
	}
}

func (b *Bus) writePump(p *peer) {
	ticker := time.NewTicker(b.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (p *peer) touch() {
	p.mu.Lock()
	p.lastActivity = time.Now()
	p.mu.Unlock()
}

func (b *Bus) sendError(p *peer, message string) {
	env := Envelope{Type: TypeErrorReport, Timestamp: time.Now()}
	data, _ := json.Marshal(ErrorReport{ErrorType: "protocolError", ErrorMessage: message})
	env.Data = data
	b.enqueue(p, env)
}

// enqueue is a non-blocking send: a peer whose send buffer is full is
// slow or gone, and is dropped from a broadcast rather than stalling it.
func (b *Bus) enqueue(p *peer, env Envelope) {
	raw, err := json.Marshal(env)
	if err != nil {
		return
	}
	select {
	case p.send <- raw:
	default:
		b.logger.WithField("agentId", p.agentID).Warn("peer send buffer full, dropping message")
	}
}

// broadcast fans an envelope out to every connected peer.
func (b *Bus) broadcast(env Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.peers {
		b.enqueue(p, env)
	}
	metrics.RecordCoordinationMessage(env.Type, "outbound")
}
