package app

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"time"
)

func (g *Gateway) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.HTTPTimeout)
	defer cancel()

	type res struct {
		key string
		val any
		err error
	}
	ch := make(chan res, 3)

	// Fetch in parallelo
	go func() {
		var latest []SensorReading
		err := g.persistence.GetJSON(ctx, "/data/latest", &latest)
		ch <- res{"sensors", latest, err}
	}()
	go func() {
		var bals []BalanceRow
		err := g.persistence.GetJSON(ctx, "/balance/latest", &bals)
		ch <- res{"balances", bals, err}
	}()
	go func() {
		var irr []Irrigation
		err := g.events.GetJSON(ctx, "/events/irrigation/latest", &irr)
		ch <- res{"irrigations", irr, err}
	}()

	data := DashboardData{
		Sensors:     []SensorReading{},
		Balances:    []BalanceRow{},
		Irrigations: []Irrigation{},
		Stats:       map[string]float64{},
	}

	for i := 0; i < 3; i++ {
		rv := <-ch
		switch rv.key {
		case "sensors":
			if rv.err != nil {
				data.Degraded = append(data.Degraded, "persistence")
				continue
			}
			if s, ok := rv.val.([]SensorReading); ok {
				data.Sensors = s
			}
		case "balances":
			if rv.err != nil {
				continue // già segnalato dal ramo sensors se persistence è giù
			}
			if b, ok := rv.val.([]BalanceRow); ok {
				data.Balances = b
			}
		case "irrigations":
			if rv.err != nil {
				// usa l'ultima cache valida (se presente)
				data.Degraded = append(data.Degraded, "events")
				data.Irrigations = g.cachedIrrigations()
				continue
			}
			if ir, ok := rv.val.([]Irrigation); ok {
				data.Irrigations = ir
				if len(ir) > 0 {
					g.cacheIrrigations(ir)
				}
			}
		}
	}

	// Ordine sensori e statistiche per la UI
	sort.Slice(data.Sensors, func(i, j int) bool {
		if data.Sensors[i].FieldID != data.Sensors[j].FieldID {
			return data.Sensors[i].FieldID < data.Sensors[j].FieldID
		}
		return data.Sensors[i].SensorID < data.Sensors[j].SensorID
	})
	if n := len(data.Sensors); n > 0 {
		var sum, minv, maxv float64
		minv = math.MaxFloat64
		for _, s := range data.Sensors {
			v := s.MoisturePct
			sum += v
			if v < minv {
				minv = v
			}
			if v > maxv {
				maxv = v
			}
		}
		data.Stats["mean"] = math.Round(sum/float64(n)*10) / 10
		data.Stats["min"] = minv
		data.Stats["max"] = maxv
	}
	sort.Strings(data.Degraded)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)

	g.cfg.Logger.Printf("GET /dashboard/data [%dms] cb[dec]=%v cb[pers]=%v cb[ev]=%v sensors=%d events=%d",
		time.Since(start).Milliseconds(),
		g.decision.BreakerState(), g.persistence.BreakerState(), g.events.BreakerState(),
		len(data.Sensors), len(data.Irrigations))
}

// HandleRecommendation inoltra al decision engine la richiesta di una
// decisione on-demand per il field. Status e body dell'upstream passano
// attraverso invariati, breaker aperto o trasporto rotto diventano 503.
func (g *Gateway) HandleRecommendation(w http.ResponseWriter, r *http.Request) {
	fieldID := r.PathValue("field")
	if fieldID == "" {
		http.Error(w, `{"error":"missing field id"}`, http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.HTTPTimeout)
	defer cancel()

	path := "/decision/" + fieldID
	if d := r.URL.Query().Get("date"); d != "" {
		path += "?date=" + d
	}

	status, body, ctype, err := g.decision.Forward(ctx, http.MethodPost, path)
	if err != nil {
		g.cfg.Logger.Printf("POST /api/recommendation/%s failed: %v (cb=%v)", fieldID, err, g.decision.BreakerState())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "decision engine unavailable"})
		return
	}
	if ctype == "" {
		ctype = "application/json"
	}
	w.Header().Set("Content-Type", ctype)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// HandleHealth riporta lo stato dei breaker verso gli upstream.
func (g *Gateway) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	out := map[string]string{
		"status":      "ok",
		"decision":    g.decision.BreakerState().String(),
		"persistence": g.persistence.BreakerState().String(),
		"events":      g.events.BreakerState().String(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
