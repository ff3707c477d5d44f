package api

import (
	"sync"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/onboardly/onboardly/internal/logging"
	"github.com/onboardly/onboardly/internal/models"
)

// sseStream emits workflow events as server-sent events. Once a write fails
// the client is gone and every later emit becomes a no-op; the workflow
// itself is never interrupted.
type sseStream struct {
	mu     sync.Mutex
	writer gin.ResponseWriter
	logger *logging.Logger
	closed bool
}

func newSSEStream(c *gin.Context, logger *logging.Logger) *sseStream {
	c.Writer.Header().Set("Content-Type", sse.ContentType)
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	return &sseStream{writer: c.Writer, logger: logger}
}

func (s *sseStream) Progress(message string) {
	s.send(models.StreamEvent{Type: models.EventProgress, Message: message})
}

func (s *sseStream) Success(message, accountID string) {
	s.send(models.StreamEvent{Type: models.EventSuccess, Message: message, AccountID: accountID})
}

func (s *sseStream) Failure(reason string) {
	s.send(models.StreamEvent{Type: models.EventFailure, Message: "provisioning failed", Reason: reason})
}

func (s *sseStream) send(event models.StreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	err := sse.Encode(s.writer, sse.Event{
		Event: string(event.Type),
		Data:  event,
	})
	if err != nil {
		s.closed = true
		s.logger.Warn("stream client gone", "error", err.Error())
		return
	}
	s.writer.Flush()
}
