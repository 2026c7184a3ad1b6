package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"vllmd/pkg/types"
)

// feedKeepAlive is how often an idle event stream gets a comment line so
// proxies do not time it out.
var feedKeepAlive = 15 * time.Second

// eventsHandler godoc
// @Summary      Live status feed
// @Description  Server-sent events; each "status" event carries a FeedFrame snapshot of all managed instances.
// @Tags         vllm
// @Produce      text/event-stream
// @Success      200  {object}  types.FeedFrame
// @Failure      503  {object}  types.ErrorResponse
// @Router       /api/vllm/events [get]
func eventsHandler(feed FeedSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if feed == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "live feed not available")
			return
		}
		rc := http.NewResponseController(w)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		if err := rc.Flush(); err != nil {
			// Headers are out; nothing more can be reported to the client.
			logger().Error().Err(err).Msg("event stream not flushable")
			return
		}

		frames, unsubscribe := feed.Subscribe()
		defer unsubscribe()
		feedClients.Inc()
		defer feedClients.Dec()

		ctx, cancel := requestContext(r)
		defer cancel()

		out := io.Writer(w)
		if requestLogLevel(r) >= LevelDebug {
			out = io.MultiWriter(w, &lineLogger{prefix: "feed " + middleware.GetReqID(r.Context())})
		}

		ping := time.NewTicker(feedKeepAlive)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ping.C:
				if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
					return
				}
			case f, ok := <-frames:
				if !ok {
					return
				}
				if err := writeEvent(out, "status", f); err != nil {
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// writeEvent writes one SSE event with a JSON payload.
func writeEvent(w io.Writer, event string, f types.FeedFrame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
	return err
}
