package server

import (
	"fmt"
	"net/http"

	"github.com/dchest/uniuri"
	"github.com/gorilla/websocket"

	"github.com/babelcloud/vidcap/internal/util"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleJobProgress streams a job's progress events over a websocket until
// the job finishes or the client goes away. Watchers that connect before the
// capture request is posted miss no events; one attaching mid-job gets the
// latest event replayed first. A finished job answers 410.
func (s *Server) handleJobProgress(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	logger := util.GetLogger()

	b, live := s.jobs.watch(jobID)
	if !live {
		writeError(w, http.StatusGone, fmt.Errorf("job %s already finished", jobID))
		return
	}

	// Subscribe before completing the handshake so a watcher that dials and
	// then posts the capture request cannot lose the race.
	subID := uniuri.NewLen(8)
	events := b.Subscribe(subID, 16)
	defer b.Unsubscribe(subID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", "job", jobID, "error", err)
		return
	}
	defer conn.Close()

	logger.Debug("Progress watcher attached", "job", jobID, "subscriber", subID)

	// Read pump. The client never sends data; reads only surface close and
	// protocol errors so the write loop can bail out.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished")
				_ = conn.WriteMessage(websocket.CloseMessage, msg)
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				logger.Debug("Progress watcher write failed", "job", jobID, "subscriber", subID, "error", err)
				return
			}
		case <-disconnected:
			logger.Debug("Progress watcher detached", "job", jobID, "subscriber", subID)
			return
		}
	}
}
