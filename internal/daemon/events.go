package daemon

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"clipspace/internal/bus"
	"clipspace/internal/logging"
)

// handleEvents streams change-bus events over a websocket. The optional
// "types" query parameter filters by comma-separated event types; "items=<id>"
// limits to one item.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	filter := eventFilterFromQuery(r)

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log().Warn("websocket accept failed", logging.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	events, dispose := s.daemon.hub.Subscribe(filter)
	defer dispose()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case evt, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if err := wsjson.Write(ctx, conn, evt); err != nil {
				if !errors.Is(err, ctx.Err()) {
					s.log().Debug("websocket write failed", logging.Error(err))
				}
				return
			}
		}
	}
}

func eventFilterFromQuery(r *http.Request) func(bus.Event) bool {
	query := r.URL.Query()
	itemID := query.Get("item")
	wanted := map[bus.EventType]bool{}
	if raw := query.Get("types"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				wanted[bus.EventType(name)] = true
			}
		}
	}
	afterSeq := uint64(0)
	if raw := query.Get("after"); raw != "" {
		if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
			afterSeq = n
		}
	}
	if itemID == "" && len(wanted) == 0 && afterSeq == 0 {
		return nil
	}
	return func(evt bus.Event) bool {
		if itemID != "" && evt.ItemID != itemID {
			return false
		}
		if len(wanted) > 0 && !wanted[evt.Type] {
			return false
		}
		return evt.Sequence > afterSeq
	}
}
