package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vault-sentinel/internal/analytics"
	"github.com/vault-sentinel/internal/config"
)

const vaultDetailsBody = `{
	"apr": "0.123",
	"allowDeposits": true,
	"vlm": "5000.5",
	"maxDistributable": "250.25",
	"portfolio": [
		["allTime", {
			"accountValueHistory": [[1700000000000, "100.5"], [1700003600000, 101.25]],
			"pnlHistory": [[1700003600000, "0.75"]]
		}],
		["week", {
			"accountValueHistory": [[1700000000000, "100.5"]],
			"pnlHistory": []
		}]
	]
}`

const marketContextBody = `[
	{"universe": [{"name": "BTC"}, {"name": "ETH"}]},
	[
		{"funding": "0.0000125", "openInterest": "12345.6", "dayNtlVlm": "987654.3"},
		{"funding": 0.00002, "openInterest": "555.5", "dayNtlVlm": "111.1"}
	]
]`

func newTestClient(t *testing.T, handler http.HandlerFunc, assetIndex int) *VaultClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewVaultClient(&config.ProviderConfig{
		InfoURL:      srv.URL,
		VaultAddress: "0xvault",
		AssetIndex:   assetIndex,
		Timeout:      5 * time.Second,
	})
}

func TestFetchVaultState(t *testing.T) {
	var gotRequest map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(vaultDetailsBody))
	}, 0)

	payload, err := client.FetchVaultState(context.Background())
	if err != nil {
		t.Fatalf("FetchVaultState: %v", err)
	}

	if gotRequest["type"] != "vaultDetails" {
		t.Errorf("request type = %v, want vaultDetails", gotRequest["type"])
	}
	if gotRequest["vaultAddress"] != "0xvault" {
		t.Errorf("request vaultAddress = %v, want 0xvault", gotRequest["vaultAddress"])
	}

	if payload.Apr != 0.123 {
		t.Errorf("Apr = %v, want 0.123", payload.Apr)
	}
	if !payload.AllowDeposits {
		t.Error("AllowDeposits = false, want true")
	}
	if payload.Volume == nil || *payload.Volume != 5000.5 {
		t.Errorf("Volume = %v, want 5000.5", payload.Volume)
	}
	if payload.MaxDistributable == nil || *payload.MaxDistributable != 250.25 {
		t.Errorf("MaxDistributable = %v, want 250.25", payload.MaxDistributable)
	}

	allTime, ok := payload.Timeframes[analytics.SourceTimeframe]
	if !ok {
		t.Fatal("allTime timeframe missing")
	}
	if len(allTime.AccountValueHistory) != 2 {
		t.Fatalf("allTime NAV points = %d, want 2", len(allTime.AccountValueHistory))
	}
	// String and number encodings decode alike.
	if allTime.AccountValueHistory[0].Value != 100.5 {
		t.Errorf("first NAV = %v, want 100.5", allTime.AccountValueHistory[0].Value)
	}
	if allTime.AccountValueHistory[1].Value != 101.25 {
		t.Errorf("second NAV = %v, want 101.25", allTime.AccountValueHistory[1].Value)
	}
	wantTs := time.UnixMilli(1700000000000).UTC()
	if !allTime.AccountValueHistory[0].Ts.Equal(wantTs) {
		t.Errorf("first NAV ts = %v, want %v", allTime.AccountValueHistory[0].Ts, wantTs)
	}
	if len(payload.Timeframes) != 2 {
		t.Errorf("timeframes = %d, want 2", len(payload.Timeframes))
	}
}

func TestFetchMarketContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(marketContextBody))
	}, 1)

	market, err := client.FetchMarketContext(context.Background())
	if err != nil {
		t.Fatalf("FetchMarketContext: %v", err)
	}
	if market.FundingRate == nil || *market.FundingRate != 0.00002 {
		t.Errorf("FundingRate = %v, want 0.00002", market.FundingRate)
	}
	if market.OpenInterest == nil || *market.OpenInterest != 555.5 {
		t.Errorf("OpenInterest = %v, want 555.5", market.OpenInterest)
	}
}

func TestFetchMarketContextIndexOutOfRange(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(marketContextBody))
	}, 5)

	if _, err := client.FetchMarketContext(context.Background()); err == nil {
		t.Fatal("expected error for out-of-range asset index")
	}
}

func TestFetchVaultStateHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}, 0)

	if _, err := client.FetchVaultState(context.Background()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestFlexFloat(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{`"123.45"`, 123.45},
		{`123.45`, 123.45},
		{`"0"`, 0},
		{`-1.5`, -1.5},
	}
	for _, tt := range tests {
		var f flexFloat
		if err := json.Unmarshal([]byte(tt.in), &f); err != nil {
			t.Errorf("unmarshal %s: %v", tt.in, err)
			continue
		}
		if float64(f) != tt.want {
			t.Errorf("flexFloat(%s) = %v, want %v", tt.in, float64(f), tt.want)
		}
	}

	var f flexFloat
	if err := json.Unmarshal([]byte(`"not-a-number"`), &f); err == nil {
		t.Error("expected error for non-numeric string")
	}
}

func TestSeriesPointRejectsBadShape(t *testing.T) {
	var p seriesPoint
	if err := json.Unmarshal([]byte(`[1700000000000]`), &p); err == nil {
		t.Error("expected error for 1-element pair")
	}
	if err := json.Unmarshal([]byte(`{"ts": 1}`), &p); err == nil {
		t.Error("expected error for object shape")
	}
}
