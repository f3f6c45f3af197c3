package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/keventd/internal/kevent"
)

func accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, context.Context, error) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		return nil, nil, err
	}
	return c, r.Context(), nil
}

// StreamEvents forwards kernel notifications to a websocket client until the
// client goes away, the monitor stops, or the client falls too far behind.
func StreamEvents(s *Service, stream string, w http.ResponseWriter, r *http.Request) {
	c, ctx, err := accept(w, r)
	if err != nil {
		log.WithError(err).Error("Failed to accept client")
		return
	}
	defer c.Close(websocket.StatusNormalClosure, "closing")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	session := uuid.NewString()
	logger := log.WithFields(log.Fields{"session": session, "stream": stream})

	var (
		kernelCh <-chan kevent.KernelEventMessage
		routeCh  <-chan kevent.RouteChange
	)
	if stream == StreamUevent || stream == StreamAll {
		ch, unsub := s.mon.SubscribeKernelEvents()
		defer unsub()
		kernelCh = ch
	}
	if stream == StreamRoute || stream == StreamAll {
		ch, unsub := s.mon.SubscribeRouteChanges()
		defer unsub()
		routeCh = ch
	}

	go func() {
		for {
			if _, _, err := c.Read(ctx); err != nil {
				cancel()
				return
			}
		}
	}()

	logger.Info("WebSocket event stream opened")
	defer logger.Info("WebSocket event stream closed")

	for {
		var frame EventFrame
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-kernelCh:
			if !ok {
				endStream(c)
				return
			}
			frame = newUeventFrame(session, msg)
		case change, ok := <-routeCh:
			if !ok {
				endStream(c)
				return
			}
			frame = newRouteFrame(session, change)
		}

		b, err := json.Marshal(frame)
		if err != nil {
			logger.WithError(err).Warn("Failed to encode event frame")
			continue
		}
		if err := c.Write(ctx, websocket.MessageText, b); err != nil {
			logger.WithError(err).Debug("Failed to write event frame")
			return
		}
	}
}

// endStream closes a session whose subscription ended: the monitor shut
// down, or the session fell more than the subscriber backlog behind.
func endStream(c *websocket.Conn) {
	c.Close(websocket.StatusGoingAway, "event stream ended")
}
