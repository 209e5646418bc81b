package sensor_simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/croplogic/irrigo/internal/model/entities"
	"github.com/croplogic/irrigo/internal/model/messages"
)

// ====== Tunables ======
const (
	// gainPerMin: +0.6% per minuto quando la valvola è ON (in [0..1]).
	gainPerMin = 0.006

	// noiseAmp: ampiezza del random walk per tick (in [0..1]).
	noiseAmp = 0.004

	// defaultSeed: valore di seed se SoilGrids non è disponibile.
	defaultSeed = 0.30 // 30%

	// soglie di fallback quando il probe non ha calibrazione (percento volumetrico)
	defaultPWPPct = 15.2
	defaultFCPct  = 25.0
	defaultSatPct = 35.5

	// soilGridsURL: fetch singola all'avvio; NON chiamare ad ogni tick.
	soilGridsURL = "https://rest.isric.org/soilgrids/v2.0/properties/query?lat=%f&lon=%f&property=wv0010"
)

// Calibration sono le soglie volumetriche del probe, in percento.
// Un valore a zero significa "non calibrato": l'osservazione esce con i
// default e quality=partial.
type Calibration struct {
	PWPPct float64
	FCPct  float64
	SatPct float64
}

func (c Calibration) complete() bool {
	return c.PWPPct > 0 && c.FCPct > 0 && c.SatPct > 0
}

// DataGenerator mantiene lo stato interno della moisture e lo aggiorna nel
// tempo: decade con la valvola OFF, cresce con la valvola ON, con un random
// walk sovrapposto. Con probabilità degradedProb il tick emette una lettura
// di fallback (is_real_data=false) per esercitare il percorso degradato dei
// consumatori a valle. Esegue al massimo UNA fetch a SoilGrids allo startup.
type DataGenerator struct {
	mu           sync.Mutex
	seeded       bool
	last         time.Time
	moisture     float64 // [0..1]
	decayPerMin  float64 // es. 0.001 → -0.1%/min quando OFF
	degradedProb float64 // [0..1]
	calib        Calibration
	pendingBoost float64
	httpClient   *http.Client
	rng          *rand.Rand
}

// NewDataGenerator crea un generatore col dato tasso di decadimento (OFF)
// per minuto e la probabilità di tick degradato.
func NewDataGenerator(decayPerMin, degradedProb float64, calib Calibration) *DataGenerator {
	return &DataGenerator{
		decayPerMin:  math.Max(0, decayPerMin),
		degradedProb: clamp01(degradedProb),
		calib:        calib,
		httpClient:   &http.Client{Timeout: 8 * time.Second},
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SeedFromSoilGrids --> singola fetch a SoilGrids all'avvio.
// Se fallisce, usa un seed di default (30%).
func (g *DataGenerator) SeedFromSoilGrids(ctx context.Context, s *entities.Sensor) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.seeded {
		return
	}

	seed := defaultSeed
	if s.Latitude != 0 || s.Longitude != 0 {
		if m, err := g.fetchSoilMoisture(ctx, s.Latitude, s.Longitude); err == nil && m >= 0 {
			seed = m
		}
	}

	g.moisture = clamp01(seed + g.pendingBoost)
	g.pendingBoost = 0
	g.last = time.Now().UTC()
	g.seeded = true
}

// Next aggiorna lo stato interno e restituisce la lettura grezza del tick.
func (g *DataGenerator) Next(sensor *entities.Sensor) messages.MoistureObservation {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UTC()
	if !g.seeded {
		// senza SeedFromSoilGrids esplicito, seed di default al primo uso
		g.moisture = clamp01(defaultSeed + g.pendingBoost)
		g.pendingBoost = 0
		g.last = now
		g.seeded = true
	}

	dtMin := now.Sub(g.last).Minutes()
	if dtMin < 0 {
		dtMin = 0
	}

	switch sensor.State {
	case entities.StateOn:
		g.moisture = clamp01(g.moisture + gainPerMin*dtMin)
	default: // OFF
		g.moisture = clamp01(g.moisture - g.decayPerMin*dtMin)
	}
	g.moisture = clamp01(g.moisture + (g.rng.Float64()-0.5)*2*noiseAmp)
	g.last = now

	obs := messages.MoistureObservation{
		FieldID:    sensor.FieldID,
		SensorID:   sensor.ID,
		Aggregated: false,
		Timestamp:  now,
	}

	if g.rng.Float64() < g.degradedProb {
		// tick degradato: il probe "tace" e il nodo emette i fallback
		obs.MoisturePct = defaultFCPct
		obs.PWPPct, obs.FCPct, obs.SatPct = defaultPWPPct, defaultFCPct, defaultSatPct
		obs.DataQuality = messages.QualityDefault
		obs.IsRealData = false
		return obs
	}

	obs.MoisturePct = round1(g.moisture * 100)
	obs.IsRealData = true
	if g.calib.complete() {
		obs.PWPPct, obs.FCPct, obs.SatPct = g.calib.PWPPct, g.calib.FCPct, g.calib.SatPct
		obs.DataQuality = messages.QualityReal
	} else {
		// lettura reale ma calibrazione mancante: soglie di default
		obs.PWPPct, obs.FCPct, obs.SatPct = defaultPWPPct, defaultFCPct, defaultSatPct
		obs.DataQuality = messages.QualityPartial
	}
	return obs
}

// ApplyIrrigation permette di accumulare un boost pre-seed.
// (Se già seedato: l'aumento avviene progressivamente mentre lo stato è ON.)
func (g *DataGenerator) ApplyIrrigation(d time.Duration) {
	if g == nil || d <= 0 {
		return
	}
	inc := gainPerMin * d.Minutes() // in [0..1]
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.seeded {
		g.pendingBoost += inc
	}
}

// ===== SoilGrids =====

type soilGridsValues struct {
	Values map[string]float64 `json:"values"`
}

type soilGridsLayer struct {
	Name   string            `json:"name"`
	Depths []soilGridsValues `json:"depths"`
}

type soilGridsProps struct {
	Layers []soilGridsLayer `json:"layers"`
}

type soilGridsResp struct {
	Properties soilGridsProps `json:"properties"`
	Features   []struct {
		Properties soilGridsProps `json:"properties"`
	} `json:"features"`
}

func (g *DataGenerator) fetchSoilMoisture(ctx context.Context, lat, lon float64) (float64, error) {
	url := fmt.Sprintf(soilGridsURL, lat, lon)

	var out float64
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", "irrigo-sensor-simulator/1.0")

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return err
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if closeErr := resp.Body.Close(); readErr == nil && closeErr != nil {
			readErr = closeErr
		}
		if readErr != nil {
			return readErr
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			var parsed soilGridsResp
			if err := json.Unmarshal(body, &parsed); err != nil {
				return err
			}
			m := moistureFrom(parsed)
			if m < 0 {
				return errors.New("soilgrids: moisture field not found")
			}
			out = normalizeWV(m)
			return nil

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("soilgrids HTTP %d", resp.StatusCode)

		default:
			// 4xx diverso da 429: ritentare non serve
			return backoff.Permanent(fmt.Errorf("soilgrids HTTP %d: %s", resp.StatusCode, string(body)))
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 600 * time.Millisecond
	bo.MaxElapsedTime = 6 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, 2), ctx)); err != nil {
		return -1, err
	}
	return out, nil
}

// moistureFrom cerca il primo valore utile nella risposta, sia nella forma
// {"properties":{...}} che {"features":[{"properties":{...}}]}.
func moistureFrom(r soilGridsResp) float64 {
	props := []soilGridsProps{r.Properties}
	for _, f := range r.Features {
		props = append(props, f.Properties)
	}
	for _, p := range props {
		for _, layer := range p.Layers {
			for _, d := range layer.Depths {
				for _, k := range []string{"Q0.5", "mean", "Q0.95", "Q0.05", "value", "MED"} {
					if v, ok := d.Values[k]; ok {
						return v
					}
				}
			}
		}
	}
	return -1
}

// normalizeWV porta i valori SoilGrids "wv****" nel dominio del simulatore (0..1).
// Molti layer sono espressi come interi in millesimi di m3/m3 (es. 420 => 0.420).
func normalizeWV(x float64) float64 {
	if x > 1.5 {
		x = x / 1000.0
	}
	return clamp01(x)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
