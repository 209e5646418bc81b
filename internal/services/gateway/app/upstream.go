package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// Upstream incapsula chiamate HTTP con Circuit Breaker
type Upstream struct {
	base    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	name    string
}

// NewUpstream costruisce un client verso un servizio a monte
func NewUpstream(name, base string, timeout time.Duration, breaker *gobreaker.CircuitBreaker) *Upstream {
	return &Upstream{
		base:    strings.TrimRight(strings.TrimSpace(base), "/"),
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		name:    name,
	}
}

func (u *Upstream) url(path string) string {
	return u.base + "/" + strings.TrimLeft(path, "/")
}

// GetJSON esegue la GET attraverso il breaker e decodifica JSON in out
func (u *Upstream) GetJSON(ctx context.Context, path string, out any) error {
	if u == nil || u.base == "" {
		// upstream opzionale non configurato: non è un errore, lasciamo out invariato
		return nil
	}

	body, err := u.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.url(path), nil)
		if err != nil {
			return nil, err
		}
		resp, err := u.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s request error: %w", u.name, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%s upstream status %d", u.name, resp.StatusCode)
		}
		b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return nil, fmt.Errorf("%s read error: %w", u.name, err)
		}
		return b, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body.([]byte), out); err != nil {
		return fmt.Errorf("%s decode error: %w", u.name, err)
	}
	return nil
}

type proxied struct {
	status int
	body   []byte
	ctype  string
}

// Forward inoltra la richiesta e restituisce status e body così come sono.
// Gli status 4xx sono risposte valide dell'upstream e non aprono il breaker,
// i 5xx e gli errori di trasporto sì.
func (u *Upstream) Forward(ctx context.Context, method, path string) (int, []byte, string, error) {
	if u == nil || u.base == "" {
		return 0, nil, "", fmt.Errorf("%s not configured", u.name)
	}

	res, err := u.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, method, u.url(path), nil)
		if err != nil {
			return nil, err
		}
		resp, err := u.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s request error: %w", u.name, err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return nil, fmt.Errorf("%s read error: %w", u.name, err)
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%s upstream status %d", u.name, resp.StatusCode)
		}
		return proxied{status: resp.StatusCode, body: b, ctype: resp.Header.Get("Content-Type")}, nil
	})
	if err != nil {
		return 0, nil, "", err
	}
	p := res.(proxied)
	return p.status, p.body, p.ctype, nil
}

// BreakerState espone lo stato corrente per i log e la healthz.
func (u *Upstream) BreakerState() gobreaker.State {
	if u == nil || u.breaker == nil {
		return gobreaker.StateClosed
	}
	return u.breaker.State()
}
