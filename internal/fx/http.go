package fx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// DefaultEndpoint serves ECB reference rates by day.
const DefaultEndpoint = "https://api.frankfurter.app"

// {"amount":1.0,"base":"EUR","date":"2024-01-12","rates":{"ILS":4.0412}}
type rateResponse struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// HTTPSource looks up historical rates from a Frankfurter compatible API.
type HTTPSource struct {
	Endpoint string
	Local    string
	Client   *http.Client
}

func NewHTTPSource(endpoint, local string) *HTTPSource {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &HTTPSource{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Local:    strings.ToUpper(local),
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (h *HTTPSource) Rate(ctx context.Context, currency string, on time.Time) (decimal.Decimal, error) {
	currency = strings.ToUpper(currency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.Endpoint+"/"+on.Format("2006-01-02"), nil)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "building rate request")
	}
	q := req.URL.Query()
	q.Add("from", currency)
	q.Add("to", h.Local)
	req.URL.RawQuery = q.Encode()

	rs, err := h.Client.Do(req)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "getting exchange rate")
	}
	defer rs.Body.Close()

	if rs.StatusCode != http.StatusOK {
		return decimal.Zero, errors.Errorf("exchange rate service returned %s", rs.Status)
	}
	body, err := io.ReadAll(io.LimitReader(rs.Body, 1<<20))
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "reading exchange rate response")
	}

	var resp rateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, errors.Wrap(err, "parsing exchange rate response")
	}
	rate, ok := resp.Rates[h.Local]
	if !ok {
		return decimal.Zero, errors.Wrapf(ErrNoRate, "%s to %s on %s", currency, h.Local, on.Format("2006-01-02"))
	}
	return rate, nil
}
