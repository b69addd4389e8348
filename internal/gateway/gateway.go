package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chronolot/chronolot/internal/auth"
	"github.com/chronolot/chronolot/internal/entries"
	"github.com/chronolot/chronolot/internal/registry"
	"github.com/chronolot/chronolot/internal/settlement"
	"github.com/chronolot/chronolot/internal/treasury"
	"github.com/chronolot/chronolot/pkg/messaging"
)

// Gateway is the HTTP surface over the raffle engine. It authenticates
// callers via bearer tokens, serves cached raffle snapshots and streams
// published events to websocket clients.
type Gateway struct {
	router    *gin.Engine
	registry  *registry.Registry
	entries   *entries.Ledger
	engine    *settlement.Engine
	treasury  *treasury.Treasury
	tokens    *auth.TokenService
	events    *messaging.Client
	cache     *redis.Client
	cacheTTL  time.Duration
	log       *zap.Logger
	wsClients map[uuid.UUID]*wsClient
	wsMu      sync.RWMutex
}

type wsClient struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// Config holds gateway settings.
type Config struct {
	RedisURL string
	CacheTTL time.Duration
	Debug    bool
}

// New wires the gateway. The redis cache is optional: an empty RedisURL
// disables snapshot caching.
func New(cfg Config, reg *registry.Registry, led *entries.Ledger, eng *settlement.Engine, trs *treasury.Treasury, tokens *auth.TokenService, events *messaging.Client, log *zap.Logger) *Gateway {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		if opts, err := redis.ParseURL(cfg.RedisURL); err == nil {
			cache = redis.NewClient(opts)
		} else {
			log.Warn("invalid redis url, snapshot cache disabled", zap.Error(err))
		}
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	g := &Gateway{
		router:    gin.New(),
		registry:  reg,
		entries:   led,
		engine:    eng,
		treasury:  trs,
		tokens:    tokens,
		events:    events,
		cache:     cache,
		cacheTTL:  ttl,
		log:       log,
		wsClients: make(map[uuid.UUID]*wsClient),
	}

	g.router.Use(gin.Recovery())
	g.setupRoutes()
	g.subscribeEvents()
	return g
}

func (g *Gateway) setupRoutes() {
	g.router.GET("/health", g.healthCheck)

	v1 := g.router.Group("/api/v1")
	{
		v1.POST("/raffles", g.authMiddleware(), g.createRaffle)
		v1.POST("/raffles/:id/entries", g.authMiddleware(), g.enter)
		v1.POST("/raffles/:id/close", g.authMiddleware(), g.closeRaffle)
		v1.POST("/raffles/:id/winning-time", g.authMiddleware(), g.setWinningTime)
		v1.POST("/raffles/:id/settle", g.authMiddleware(), g.settle)
		v1.POST("/raffles/:id/manual-settle", g.authMiddleware(), g.manualSettle)
		v1.POST("/raffles/:id/retry-payouts", g.authMiddleware(), g.retryPayouts)

		v1.POST("/treasury/fee-bps", g.authMiddleware(), g.setFeeBps)
		v1.POST("/treasury/withdraw", g.authMiddleware(), g.withdrawFee)

		v1.GET("/raffles/count", g.raffleCount)
		v1.GET("/raffles/:id", g.getRaffle)
		v1.GET("/raffles/:id/entries/:slot", g.getEntrant)
		v1.GET("/treasury", g.getTreasury)

		v1.GET("/ws", g.authMiddleware(), g.handleWebSocket)
	}
}

// Start begins serving. It blocks until the server stops.
func (g *Gateway) Start(addr string) error {
	return g.router.Run(addr)
}

// Handler exposes the router for tests and custom servers.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		caller, err := g.tokens.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("caller_id", caller)
		c.Next()
	}
}

func (g *Gateway) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Websocket fan-out

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (g *Gateway) subscribeEvents() {
	if !g.events.IsConnected() {
		return
	}
	for _, subject := range []string{"raffle.>", "treasury.>"} {
		subject := subject
		err := g.events.Subscribe(subject, func(msg *nats.Msg) {
			g.broadcast(msg.Subject, msg.Data)
		})
		if err != nil {
			g.log.Warn("event stream unavailable", zap.String("subject", subject), zap.Error(err))
		}
	}
}

func (g *Gateway) broadcast(subject string, data []byte) {
	frame, err := json.Marshal(gin.H{"type": subject, "data": json.RawMessage(data)})
	if err != nil {
		return
	}

	g.wsMu.RLock()
	defer g.wsMu.RUnlock()
	for _, client := range g.wsClients {
		select {
		case client.send <- frame:
		default:
			// Slow consumer; drop the frame rather than block the bus.
		}
	}
}

func (g *Gateway) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := &wsClient{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, 16),
		done: make(chan struct{}),
	}

	g.wsMu.Lock()
	g.wsClients[client.id] = client
	g.wsMu.Unlock()

	go g.wsReadPump(client)
	go g.wsWritePump(client)
}

func (g *Gateway) wsReadPump(client *wsClient) {
	defer func() {
		g.wsMu.Lock()
		delete(g.wsClients, client.id)
		g.wsMu.Unlock()
		close(client.done)
		client.conn.Close()
	}()

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (g *Gateway) wsWritePump(client *wsClient) {
	for {
		select {
		case frame := <-client.send:
			if err := client.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-client.done:
			return
		}
	}
}

// Snapshot cache

func (g *Gateway) cacheKey(id uint64) string {
	return "raffle:snapshot:" + formatID(id)
}

func (g *Gateway) invalidate(ctx context.Context, id uint64) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Del(ctx, g.cacheKey(id)).Err(); err != nil {
		g.log.Warn("snapshot cache invalidation failed", zap.Uint64("raffle_id", id), zap.Error(err))
	}
}
