// Package adapter implements the outbound client for the vault data
// provider's JSON-over-HTTP info endpoint.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vault-sentinel/internal/analytics"
	"github.com/vault-sentinel/internal/config"
)

// VaultPayload is the decoded vault-detail response: the per-timeframe
// series plus the pass-through scalar fields.
type VaultPayload struct {
	Timeframes       map[string]analytics.Timeframe
	Apr              float64
	Volume           *float64
	AllowDeposits    bool
	MaxDistributable *float64
}

// MarketContext is the supplementary perp-market readout. All fields are nil
// when the context is unavailable, which scores neutral downstream.
type MarketContext struct {
	FundingRate  *float64
	OpenInterest *float64
	Volume24h    *float64
}

// VaultClient talks to the provider info endpoint.
type VaultClient struct {
	infoURL      string
	vaultAddress string
	assetIndex   int
	client       *http.Client
}

// NewVaultClient creates a provider client from configuration.
func NewVaultClient(cfg *config.ProviderConfig) *VaultClient {
	return &VaultClient{
		infoURL:      cfg.InfoURL,
		vaultAddress: cfg.VaultAddress,
		assetIndex:   cfg.AssetIndex,
		client:       &http.Client{Timeout: cfg.Timeout},
	}
}

// FetchVaultState issues the vault-detail request. NAV is the primary signal,
// so callers treat any failure here as fatal for the ingestion cycle.
func (c *VaultClient) FetchVaultState(ctx context.Context) (*VaultPayload, error) {
	req := map[string]interface{}{
		"type":         "vaultDetails",
		"vaultAddress": c.vaultAddress,
	}

	var raw vaultDetailsResponse
	if err := c.post(ctx, req, &raw); err != nil {
		return nil, fmt.Errorf("vault details: %w", err)
	}

	timeframes := make(map[string]analytics.Timeframe, len(raw.Portfolio))
	for _, entry := range raw.Portfolio {
		timeframes[entry.Key] = analytics.Timeframe{
			AccountValueHistory: toPoints(entry.Data.AccountValueHistory),
			PnlHistory:          toPoints(entry.Data.PnlHistory),
		}
	}

	payload := &VaultPayload{
		Timeframes:       timeframes,
		Apr:              float64(raw.Apr),
		AllowDeposits:    raw.AllowDeposits,
		Volume:           raw.Vlm.ptr(),
		MaxDistributable: raw.MaxDistributable.ptr(),
	}
	return payload, nil
}

// FetchMarketContext issues the market-context request and picks the
// configured asset's context. Callers degrade to a neutral MarketContext on
// failure: market context is supplementary.
func (c *VaultClient) FetchMarketContext(ctx context.Context) (*MarketContext, error) {
	req := map[string]interface{}{"type": "metaAndAssetCtxs"}

	// The response is a 2-element array: [meta, assetContexts].
	var raw []json.RawMessage
	if err := c.post(ctx, req, &raw); err != nil {
		return nil, fmt.Errorf("market context: %w", err)
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("market context: expected [meta, assetContexts], got %d elements", len(raw))
	}

	var contexts []assetContext
	if err := json.Unmarshal(raw[1], &contexts); err != nil {
		return nil, fmt.Errorf("market context: decode asset contexts: %w", err)
	}
	if c.assetIndex < 0 || c.assetIndex >= len(contexts) {
		return nil, fmt.Errorf("market context: asset index %d out of range (%d contexts)", c.assetIndex, len(contexts))
	}

	asset := contexts[c.assetIndex]
	return &MarketContext{
		FundingRate:  asset.Funding.ptr(),
		OpenInterest: asset.OpenInterest.ptr(),
		Volume24h:    asset.DayNtlVlm.ptr(),
	}, nil
}

func (c *VaultClient) post(ctx context.Context, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.infoURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Wire types. The provider serializes most magnitudes as decimal strings and
// series as [timestampMs, value] pairs.

type vaultDetailsResponse struct {
	Portfolio        []timeframeEntry `json:"portfolio"`
	Apr              flexFloat        `json:"apr"`
	Vlm              *flexFloat       `json:"vlm"`
	AllowDeposits    bool             `json:"allowDeposits"`
	MaxDistributable *flexFloat       `json:"maxDistributable"`
}

type timeframeEntry struct {
	Key  string
	Data timeframeData
}

// UnmarshalJSON decodes the [timeframeKey, {…}] pair shape.
func (e *timeframeEntry) UnmarshalJSON(b []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		return err
	}
	if len(parts) != 2 {
		return fmt.Errorf("portfolio entry: expected [key, data], got %d elements", len(parts))
	}
	if err := json.Unmarshal(parts[0], &e.Key); err != nil {
		return fmt.Errorf("portfolio entry key: %w", err)
	}
	if err := json.Unmarshal(parts[1], &e.Data); err != nil {
		return fmt.Errorf("portfolio entry data: %w", err)
	}
	return nil
}

type timeframeData struct {
	AccountValueHistory []seriesPoint `json:"accountValueHistory"`
	PnlHistory          []seriesPoint `json:"pnlHistory"`
}

type seriesPoint struct {
	TsMillis int64
	Value    flexFloat
}

// UnmarshalJSON decodes the [timestampMs, value] pair shape.
func (p *seriesPoint) UnmarshalJSON(b []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		return err
	}
	if len(parts) != 2 {
		return fmt.Errorf("series point: expected [ts, value], got %d elements", len(parts))
	}
	if err := json.Unmarshal(parts[0], &p.TsMillis); err != nil {
		return fmt.Errorf("series point timestamp: %w", err)
	}
	if err := json.Unmarshal(parts[1], &p.Value); err != nil {
		return fmt.Errorf("series point value: %w", err)
	}
	return nil
}

type assetContext struct {
	Funding      *flexFloat `json:"funding"`
	OpenInterest *flexFloat `json:"openInterest"`
	DayNtlVlm    *flexFloat `json:"dayNtlVlm"`
}

// flexFloat accepts a JSON number or a decimal string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		var n json.Number = json.Number(s)
		v, err := n.Float64()
		if err != nil {
			return fmt.Errorf("numeric string %q: %w", s, err)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

func (f *flexFloat) ptr() *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}

func toPoints(raw []seriesPoint) []analytics.Point {
	points := make([]analytics.Point, len(raw))
	for i, p := range raw {
		points[i] = analytics.Point{
			Ts:    time.UnixMilli(p.TsMillis).UTC(),
			Value: float64(p.Value),
		}
	}
	return points
}
