package quote_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/quote"
	"github.com/noah-isme/toko-pricing/internal/tenant"
)

type errorResponse struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func newRouter(src quote.SettingsSource) http.Handler {
	h := quote.NewHandler(quote.HandlerConfig{
		Service:      newService(src),
		Renderer:     quote.Renderer{CompanyName: "Acme Traders"},
		MaxBodyBytes: 1 << 16,
	})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(tenant.WithTenant(r.Context(), "acme")))
		})
	})
	h.Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const calculateBody = `{
  "kind": "invoice",
  "number": "INV-001",
  "currency": "EUR",
  "items": [{"name": "Widget", "quantity": 2, "unitPrice": "50", "taxRatePercent": 10}],
  "discounts": [{"name": "Loyalty", "ratePercent": 5}],
  "shipping": {"cost": 15}
}`

func TestCalculateHandler(t *testing.T) {
	rec := do(t, newRouter(stubSettings{settings: tenantSettings()}), http.MethodPost, "/pricing/calculate", calculateBody)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Number   string `json:"number"`
			Currency struct {
				Code string `json:"code"`
			} `json:"currency"`
			Base struct {
				GrandTotal string `json:"grandTotal"`
			} `json:"base"`
			Formatted quote.Totals `json:"formatted"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "INV-001", resp.Data.Number)
	require.Equal(t, "EUR", resp.Data.Currency.Code)
	// 100 subtotal + 10 line tax - 5 aggregate discount + 15 shipping.
	require.Equal(t, "120", resp.Data.Base.GrandTotal)
	require.Equal(t, "€108.00", resp.Data.Formatted.GrandTotal)
}

func TestCalculateHandlerInvalidInput(t *testing.T) {
	body := `{"items": [{"name": "Widget", "quantity": -1, "unitPrice": 5}]}`
	rec := do(t, newRouter(nil), http.MethodPost, "/pricing/calculate", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "INVALID_INPUT", resp.Error.Code)
	require.JSONEq(t, `{"field":"items.quantity","index":0,"reason":"must not be negative"}`, string(resp.Error.Details))
}

func TestCalculateHandlerBadPayloads(t *testing.T) {
	router := newRouter(nil)
	cases := map[string]struct {
		body string
		code string
	}{
		"malformed json": {body: `{"items": [`, code: "BAD_REQUEST"},
		"unknown field":  {body: `{"items": [], "total": 5}`, code: "BAD_REQUEST"},
		"missing name":   {body: `{"items": [{"quantity": 1, "unitPrice": 5}]}`, code: "VALIDATION_FAILED"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/pricing/calculate", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestDocumentHandlerRendersPDF(t *testing.T) {
	rec := do(t, newRouter(stubSettings{settings: tenantSettings()}), http.MethodPost, "/pricing/document", calculateBody)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), `filename="INV-001.pdf"`)
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestCurrencyHandlers(t *testing.T) {
	router := newRouter(stubSettings{settings: tenantSettings()})

	rec := do(t, router, http.MethodGet, "/currencies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"baseCurrency":"USD"`)

	rec = do(t, router, http.MethodGet, "/currencies/EUR/rate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"rate":"0.9"`)

	rec = do(t, router, http.MethodPost, "/currencies/convert", `{"amount": 100, "currency": "EUR", "direction": "to_display"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"formatted":"€90.00"`)

	rec = do(t, router, http.MethodPost, "/currencies/convert", `{"amount": 100, "currency": "EUR"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCurrenciesHandlerUnavailable(t *testing.T) {
	rec := do(t, newRouter(stubSettings{err: errors.New("db down")}), http.MethodGet, "/currencies", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "SETTINGS_UNAVAILABLE", resp.Error.Code)
}
