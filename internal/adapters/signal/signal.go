package signal

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Collab/internal/adapters/rtc"
	"github.com/dkeye/Collab/internal/app/orch"
	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// SessionNameKey is the cookie session key holding the remembered display name.
const SessionNameKey = "name"

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
	ICEServers []string
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 32768
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	return o
}

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Limiter *RateLimiter
	Opts    Options

	mu    sync.Mutex
	peers map[domain.UserID]*rtc.WebRTCConnection
}

func NewSignalWSController(o *orch.Orchestrator, limiter *RateLimiter, opts Options) *SignalWSController {
	return &SignalWSController{
		Orch:    o,
		Limiter: limiter,
		Opts:    opts.withDefaults(),
		peers:   make(map[domain.UserID]*rtc.WebRTCConnection),
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// wsClient is what the pumps know about one accepted connection.
type wsClient struct {
	sid   domain.UserID
	ip    string
	token string
	conn  *WsSignalConn
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ClientIP takes the first X-Forwarded-For entry, falling back to the peer address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	cl := &wsClient{
		sid:   domain.UserID(uuid.NewString()),
		ip:    ClientIP(c.Request),
		token: c.GetString("client_token"),
	}
	name, _ := sessions.Default(c).Get(SessionNameKey).(string)
	log.Info().Str("module", "signal").Str("sid", string(cl.sid)).Str("client", cl.token).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	cl.conn = &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.Opts.SendBuffer),
	}

	user := domain.NewUser(cl.sid, cl.ip)
	if name != "" {
		_ = user.SetName(name)
	}
	sess := core.NewMemberSession(user, cl.conn)
	ctx, cancel := context.WithCancel(ctx)
	if err := ctl.Orch.Run(ctx, func() { ctl.Orch.Connect(sess, cancel) }); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(cl.sid)).Msg("connect failed")
		cancel()
		cl.conn.Close()
		return
	}

	go ctl.writePump(ctx, cl.conn)
	go ctl.readPump(ctx, cancel, cl)
}
