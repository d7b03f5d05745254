package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andreyestevam/collaborative-whiteboard/config"
	"github.com/andreyestevam/collaborative-whiteboard/history"
	"github.com/andreyestevam/collaborative-whiteboard/hub"
	"github.com/andreyestevam/collaborative-whiteboard/protocol"
	ws "github.com/andreyestevam/collaborative-whiteboard/websocket"
)

// Deps are the components the router exposes.
type Deps struct {
	Hub       *hub.Hub
	History   *history.Manager
	Handler   *protocol.Handler
	WebSocket config.WebSocketConfig
	Gatherer  prometheus.Gatherer
}

// NewRouter builds the HTTP routes: the websocket endpoint, the whiteboard
// state API, health, stats and metrics.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(req *http.Request) bool {
			return d.WebSocket.OriginAllowed(req.Header.Get("Origin"))
		},
	}
	opts := ws.Options{
		WriteWait:      d.WebSocket.WriteWait,
		PongWait:       d.WebSocket.PongWait,
		MaxMessageSize: d.WebSocket.ReadLimit,
		SendBuffer:     d.WebSocket.SendBuffer,
	}
	r.GET(d.WebSocket.Path, wsHandler(upgrader, opts, d.Handler))

	NewWhiteboardHandler(d.History).Register(r.Group("/api/whiteboard"))

	r.GET("/health", healthHandler)
	r.GET("/stats", statsHandler(d.Hub))
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

func wsHandler(upgrader websocket.Upgrader, opts ws.Options, handler *protocol.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("upgrade error", "error", err)
			return
		}

		username := c.Query("username")
		wsConn := ws.NewConn(uuid.New().String(), username, conn, opts)
		go wsConn.Run(handler)
	}
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func statsHandler(h *hub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"clients": h.Count()})
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
