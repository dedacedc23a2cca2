package sink

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/srg/r10bridge/internal/normalize"
)

// puttStroke is the JSON payload a putting camera posts: a stripped-down
// shot with no club metrics and no device-assigned shot-id, since the
// camera is a separate measurement path from the R10.
type puttStroke struct {
	BallSpeedMPH    float64 `json:"ball_speed_mph"`
	LaunchDirection float64 `json:"launch_direction_deg"`
}

// PuttingHTTPHandler accepts POST /putt requests from a putting camera
// and republishes each stroke as a synthetic ShotRecord through the same
// Sink the BLE core feeds, so both measurement sources converge on one
// downstream fan-out.
type PuttingHTTPHandler struct {
	next Sink
	log  *logrus.Entry

	nextShotID uint32
}

// NewPuttingHTTPHandler wraps next, the Sink every decoded stroke is
// forwarded to.
func NewPuttingHTTPHandler(next Sink, log *logrus.Entry) *PuttingHTTPHandler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &PuttingHTTPHandler{next: next, log: log}
}

func (h *PuttingHTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var stroke puttStroke
	if err := json.NewDecoder(r.Body).Decode(&stroke); err != nil {
		h.log.WithError(err).Warn("sink: malformed putt stroke payload")
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	h.nextShotID++
	h.next.OnShot(normalize.ShotRecord{
		ShotID:          puttingShotIDBase + h.nextShotID,
		BallSpeedMPH:    stroke.BallSpeedMPH,
		LaunchDirection: stroke.LaunchDirection,
	})

	w.WriteHeader(http.StatusAccepted)
}

// puttingShotIDBase keeps putting-camera synthetic shot-ids out of the
// device's own shot-id space, which starts at 0 and increments slowly.
const puttingShotIDBase = 1 << 30
