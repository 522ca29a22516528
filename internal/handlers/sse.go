package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/skillscope-backend/internal/logger"
	"github.com/yungbote/skillscope-backend/internal/requestdata"
	"github.com/yungbote/skillscope-backend/internal/sse"
)

type SSEHandler struct {
	log *logger.Logger
	hub *sse.SSEHub
}

func NewSSEHandler(log *logger.Logger, hub *sse.SSEHub) *SSEHandler {
	return &SSEHandler{log: log.With("handler", "SSEHandler"), hub: hub}
}

// GET /sse/stream
//
// Every authenticated user streams their own channel; safety notifications
// for teachers arrive here without polling.
func (h *SSEHandler) Stream(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())

	client := h.hub.NewSSEClient(rd.UserID)
	h.hub.AddChannel(client, rd.UserID.String())
	defer h.hub.CloseClient(client)

	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
