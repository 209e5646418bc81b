package decision_engine

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/croplogic/irrigo/internal/model"
)

// NewHTTPMux exposes the decision engine over HTTP: manual decision runs,
// water-balance and decision history reads, health and metrics.
func NewHTTPMux(ctrl *Controller, mq mqtt.Client) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		type status struct {
			Status        string `json:"status"`
			MQTTConnected bool   `json:"mqtt_connected"`
			Fields        int    `json:"fields"`
		}
		st := status{
			MQTTConnected: mq != nil && mq.IsConnectionOpen(),
			Fields:        len(ctrl.engine.FieldIDs()),
		}
		st.Status = "ok"
		if !st.MQTTConnected {
			st.Status = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st)
	})

	mux.Handle("/metrics", promhttp.Handler())

	// POST /decision/{field}?date=YYYY-MM-DD
	// Senza date usa il giorno corrente nel fuso del servizio.
	mux.HandleFunc("POST /decision/{field}", func(w http.ResponseWriter, r *http.Request) {
		fieldID := r.PathValue("field")

		day := todayIn(ctrl.tz)
		if s := strings.TrimSpace(r.URL.Query().Get("date")); s != "" {
			d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
			if err != nil {
				writeAPIError(w, model.Validationf("bad date %q, want YYYY-MM-DD", s), http.StatusServiceUnavailable)
				return
			}
			day = d
		}

		dec, err := ctrl.RunDecision(r.Context(), fieldID, day)
		if err != nil {
			writeAPIError(w, err, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dec)
	})

	// GET /waterbalance/{field}
	mux.HandleFunc("GET /waterbalance/{field}", func(w http.ResponseWriter, r *http.Request) {
		st, err := ctrl.engine.CurrentWaterBalance(r.PathValue("field"))
		if err != nil {
			writeAPIError(w, err, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st)
	})

	// GET /decisions/{field}?limit=30
	mux.HandleFunc("GET /decisions/{field}", func(w http.ResponseWriter, r *http.Request) {
		limit := 30
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 365 {
				limit = n
			}
		}
		decs, err := ctrl.engine.RecentDecisions(r.PathValue("field"), limit)
		if err != nil {
			writeAPIError(w, err, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(decs)
	})

	return mux
}

// writeAPIError maps the error taxonomy onto HTTP statuses. unavailableCode
// picks what a degraded collaborator means for the route: 503 on a decision
// run, 404 on a read with nothing committed yet.
func writeAPIError(w http.ResponseWriter, err error, unavailableCode int) {
	kind := "internal"
	code := http.StatusInternalServerError

	var ve *model.ValidationError
	var ce *model.ConcurrencyError
	var se *model.SequenceError
	var de *model.DataUnavailableError
	switch {
	case errors.As(err, &ve):
		kind, code = "validation", http.StatusUnprocessableEntity
	case errors.As(err, &ce):
		kind, code = "busy", http.StatusConflict
	case errors.As(err, &se):
		kind, code = "sequence", http.StatusConflict
	case errors.As(err, &de):
		kind, code = "data_unavailable", unavailableCode
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": kind, "detail": err.Error()})
}

func todayIn(loc *time.Location) time.Time {
	lt := time.Now().In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, time.UTC)
}
