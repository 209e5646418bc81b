package decision_engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/croplogic/irrigo/internal/fao56"
	"github.com/croplogic/irrigo/internal/model/messages"
)

type owmDaily struct {
	Dt   int64 `json:"dt"`
	Temp struct {
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	} `json:"temp"`
	Humidity  float64 `json:"humidity"`
	WindSpeed float64 `json:"wind_speed"`
	Pop       float64 `json:"pop"`
	Rain      float64 `json:"rain"`
}

type owmResp struct {
	Daily []owmDaily `json:"daily"`
}

// OWMClient adatta la One Call API di OpenWeather all'interfaccia
// WeatherSource: un'unica chiamata daily copre sia il giorno osservato sia
// la finestra di previsione.
type OWMClient struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
}

var _ WeatherSource = (*OWMClient)(nil)

func NewOWMClient(key string) *OWMClient {
	return &OWMClient{
		apiKey:  key,
		baseURL: "https://api.openweathermap.org/data/3.0/onecall",
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Daily builds the day's weather record. OpenWeather reports one relative
// humidity and no radiation, so RHmin/RHmax collapse to that value and solar
// radiation is estimated from the temperature span.
func (c *OWMClient) Daily(ctx context.Context, lat, lon float64, day time.Time) (messages.WeatherRecord, error) {
	out, err := c.fetch(ctx, lat, lon)
	if err != nil {
		return messages.WeatherRecord{}, err
	}

	target := civilDay(day)
	chosen, delta, found := nearestDaily(out.Daily, target)
	if !found || delta > 24*time.Hour {
		return messages.WeatherRecord{}, fmt.Errorf("no daily entry near %s", target.Format("2006-01-02"))
	}

	rec := messages.WeatherRecord{
		Date:     target,
		TminC:    chosen.Temp.Min,
		TmaxC:    chosen.Temp.Max,
		RHminPct: chosen.Humidity,
		RHmaxPct: chosen.Humidity,
		// vento a 10 m -> 2 m, profilo logaritmico
		WindMS:  chosen.WindSpeed * 0.748,
		SolarMJ: fao56.SolarFromTempSpan(chosen.Temp.Min, chosen.Temp.Max, lat, target.YearDay()),
		RainMM:  chosen.Rain,
	}
	return rec, nil
}

// Forecast returns the window starting tomorrow, newest call wins.
func (c *OWMClient) Forecast(ctx context.Context, lat, lon float64, days int) ([]messages.ForecastDay, error) {
	out, err := c.fetch(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	today := civilDay(time.Now())
	window := make([]messages.ForecastDay, 0, days)
	for _, d := range out.Daily {
		date := civilDay(time.Unix(d.Dt, 0))
		if !date.After(today) {
			continue
		}
		window = append(window, messages.ForecastDay{
			Date:            date,
			TminC:           d.Temp.Min,
			TmaxC:           d.Temp.Max,
			RainMM:          d.Rain,
			RainProbability: d.Pop,
		})
		if len(window) >= days {
			break
		}
	}
	return window, nil
}

func (c *OWMClient) fetch(ctx context.Context, lat, lon float64) (owmResp, error) {
	if c.apiKey == "" {
		return owmResp{}, fmt.Errorf("missing api key")
	}
	url := fmt.Sprintf("%s?lat=%f&lon=%f&exclude=current,minutely,hourly,alerts&units=metric&appid=%s",
		c.baseURL, lat, lon, c.apiKey)

	var out owmResp
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.httpc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			err := fmt.Errorf("owm status %d: %s", resp.StatusCode, string(b))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err) // chiave errata o quota: inutile ritentare
			}
			return err
		}
		out = owmResp{}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return err
		}
		if len(out.Daily) == 0 {
			return backoff.Permanent(fmt.Errorf("no daily data"))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 15 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx)); err != nil {
		return owmResp{}, err
	}
	return out, nil
}

// nearestDaily picks the entry closest to the target civil day.
func nearestDaily(daily []owmDaily, target time.Time) (owmDaily, time.Duration, bool) {
	if len(daily) == 0 {
		return owmDaily{}, 0, false
	}
	chosen := daily[0]
	minDelta := time.Duration(1<<63 - 1)
	for _, d := range daily {
		date := civilDay(time.Unix(d.Dt, 0))
		delta := target.Sub(date)
		if delta < 0 {
			delta = -delta
		}
		if delta < minDelta {
			minDelta = delta
			chosen = d
		}
	}
	return chosen, minDelta, true
}
