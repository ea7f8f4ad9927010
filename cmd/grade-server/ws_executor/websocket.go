// Package wsexecutor streams grading progress over a websocket: the client
// sends one request, receives one event per recorded task result and a final
// response event, after which the connection is closed.
package wsexecutor

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/curriculagg/curricula-grade/cmd/grade-server/model"
	"github.com/curriculagg/curricula-grade/result"
	"github.com/curriculagg/curricula-grade/store"
	"github.com/curriculagg/curricula-grade/task"
	"github.com/curriculagg/curricula-grade/worker"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// Register registers the handler
type Register interface {
	Register(*gin.Engine)
}

type wsHandle struct {
	worker worker.Worker
	store  store.Store
	logger *zap.Logger
}

// New creates a new websocket handle
func New(worker worker.Worker, store store.Store, logger *zap.Logger) Register {
	return &wsHandle{
		worker: worker,
		store:  store,
		logger: logger,
	}
}

func (h *wsHandle) Register(r *gin.Engine) {
	r.GET("/grade/ws", h.handleWS)
}

func (h *wsHandle) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.Error(err)
		return
	}
	defer conn.Close()

	var req model.Request
	conn.SetReadDeadline(time.Now().Add(pongWait))
	if err := conn.ReadJSON(&req); err != nil {
		h.logger.Debug("ws read", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the read loop only handles pongs and notices a closed connection
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	eventCh := make(chan model.Event, 64)
	r := model.ConvertRequest(&req)
	r.OnResult = func(problem string, _ *task.Descriptor, res *result.Result, _ time.Duration) {
		if req.Thin {
			res = res.Thin()
		}
		select {
		case eventCh <- model.Event{Type: "result", Problem: problem, Result: res}:
		case <-ctx.Done():
		}
	}
	rtCh := h.worker.Submit(ctx, r)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev := <-eventCh:
			if !h.write(conn, ev) {
				return
			}
		case rt := <-rtCh:
			// results recorded before the response are already queued
			for len(eventCh) > 0 {
				if !h.write(conn, <-eventCh) {
					return
				}
			}
			var id string
			if rt.Report != nil {
				if id, err = h.store.Add(rt.RequestID, rt.Report); err != nil {
					h.logger.Error("store report", zap.Error(err))
				}
			}
			resp := model.ConvertResponse(rt, id, req.Thin)
			if h.write(conn, model.Event{Type: "response", Response: &resp}) {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			}
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			h.logger.Debug("ws closed by client", zap.String("requestId", r.RequestID))
			<-rtCh
			return
		}
	}
}

func (h *wsHandle) write(conn *websocket.Conn, ev model.Event) bool {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ev); err != nil {
		h.logger.Debug("ws write", zap.Error(err))
		return false
	}
	return true
}
