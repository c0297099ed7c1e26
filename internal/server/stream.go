/*
SPDX-License-Identifier: Apache-2.0
*/

package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// streamReceipts upgrades the connection and writes every committed receipt
// as a JSON text message until the client goes away, falls behind or the
// server shuts down.
func (s *Server) streamReceipts(w http.ResponseWriter, r *http.Request) {
	// subscribe before the upgrade so a client sees every receipt committed
	// after its handshake completes
	subID, receipts := s.node.Subscribe(receiptBuffer)
	defer s.node.Unsubscribe(subID)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	logger := s.logger.With("subscriber", subID)
	logger.Debug("receipt stream opened")

	// the client never sends data, reading only detects the close
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case receipt, ok := <-receipts:
			if !ok {
				logger.Info("receipt subscriber fell behind, closing stream")
				s.closeStream(conn, websocket.CloseTryAgainLater, "subscriber fell behind")
				return
			}
			if err := conn.SetWriteDeadline(s.writeDeadline()); err != nil {
				return
			}
			if err := conn.WriteJSON(receipt); err != nil {
				logger.Debug("receipt write failed", "err", err)
				return
			}
		case <-gone:
			logger.Debug("receipt stream closed by client")
			return
		case <-s.quit:
			s.closeStream(conn, websocket.CloseGoingAway, "server shutting down")
			return
		}
	}
}

func (s *Server) closeStream(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), s.writeDeadline())
}

// writeDeadline returns the zero time, meaning no deadline, when no write
// timeout is configured
func (s *Server) writeDeadline() time.Time {
	if s.cfg.WSWriteTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.cfg.WSWriteTimeout)
}
