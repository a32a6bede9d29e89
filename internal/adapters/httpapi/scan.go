package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rs/xid"

	"github.com/redsinal/questlog/internal/app"
	"github.com/redsinal/questlog/internal/httpjson"
)

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	summary, err := s.series.CheckUpdates(r.Context(), s.progressPublisher("scan.progress"))
	if err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]string{"summary": summary})
}

// progressPublisher turns batch progress callbacks into bus events, tagged
// with a fresh run id so a client following the stream can tell overlapping
// runs apart.
func (s *Server) progressPublisher(topic string) app.ProgressFunc {
	if s.bus == nil {
		return nil
	}
	runID := xid.New().String()
	return func(done, total int, title string) {
		b, err := json.Marshal(map[string]any{
			"runId": runID,
			"done":  done,
			"total": total,
			"title": title,
		})
		if err != nil {
			return
		}
		s.bus.Publish(topic, b)
	}
}
