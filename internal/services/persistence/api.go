package persistence

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/croplogic/irrigo/internal/model/messages"
)

type moistureRow struct {
	FieldID     string  `json:"field_id"`
	SensorID    string  `json:"sensor_id"`
	MoisturePct float64 `json:"moisture_pct"`
	DataQuality string  `json:"data_quality,omitempty"`
	IsRealData  bool    `json:"is_real_data"`
	Aggregated  bool    `json:"aggregated"`
	Timestamp   string  `json:"timestamp"`
}

func toRows(obs []messages.MoistureObservation) []moistureRow {
	rows := make([]moistureRow, 0, len(obs))
	for _, v := range obs {
		rows = append(rows, moistureRow{
			FieldID:     v.FieldID,
			SensorID:    v.SensorID,
			MoisturePct: v.MoisturePct,
			DataQuality: v.DataQuality,
			IsRealData:  v.IsRealData,
			Aggregated:  v.Aggregated,
			Timestamp:   v.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return rows
}

func NewHTTPMux(svc *Service) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })

	// GET /data/latest
	// Query params:
	//   source=auto|influx|cache   (default auto: prova Influx, fallback cache)
	//   minutes=<int>              (finestra temporale per Influx, default 1440 = 24h)
	mux.HandleFunc("/data/latest", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		source := strings.ToLower(q.Get("source"))
		if source == "" {
			source = "auto"
		}
		minutes := 60 * 24
		if s := q.Get("minutes"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				minutes = n
			}
		}

		// prefer Influx, fallback cache
		var list []moistureRow
		var used string

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if source == "influx" || source == "auto" {
			if obs, err := svc.QueryLatestFromInflux(ctx, minutes); err == nil && len(obs) > 0 {
				list = toRows(obs)
				used = "influx"
			}
		}
		if used == "" { // cache path
			list = toRows(svc.LatestCache())
			used = "cache"
		}

		sort.Slice(list, func(i, j int) bool {
			if list[i].FieldID != list[j].FieldID {
				return list[i].FieldID < list[j].FieldID
			}
			return list[i].SensorID < list[j].SensorID
		})

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Data-Source", used)
		_ = json.NewEncoder(w).Encode(list)
	})

	// GET /balance/latest
	// Ultimo snapshot di bilancio idrico per field, dalla cache in memoria.
	mux.HandleFunc("/balance/latest", func(w http.ResponseWriter, _ *http.Request) {
		type outT struct {
			FieldID   string  `json:"field_id"`
			Date      string  `json:"date"`
			DrMM      float64 `json:"dr_mm"`
			DeMM      float64 `json:"de_mm"`
			TAWmm     float64 `json:"taw_mm"`
			RAWmm     float64 `json:"raw_mm"`
			Ks        float64 `json:"ks"`
			ET0mm     float64 `json:"et0_mm"`
			ETcMM     float64 `json:"etc_mm"`
			Timestamp string  `json:"timestamp"`
		}
		bals := svc.LatestBalances()
		out := make([]outT, 0, len(bals))
		for _, b := range bals {
			out = append(out, outT{
				FieldID: b.FieldID, Date: b.Date,
				DrMM: b.DrMM, DeMM: b.DeMM, TAWmm: b.TAWmm, RAWmm: b.RAWmm,
				Ks: b.Ks, ET0mm: b.ET0mm, ETcMM: b.ETcMM,
				Timestamp: b.Timestamp.UTC().Format(time.RFC3339),
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].FieldID < out[j].FieldID })

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})

	return mux
}
