package trade

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

var rawTransaction = []byte{0x01, 0x02, 0x03, 0xfe}

func newTradeServer(t *testing.T, status int, reply []byte, captured *map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if captured != nil {
			require.NoError(t, json.Unmarshal(body, captured))
		}
		w.WriteHeader(status)
		_, _ = w.Write(reply)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		Endpoint:        server.URL,
		SlippagePercent: 10,
		PriorityFeeSOL:  0.0005,
		HTTPClient:      server.Client(),
	})
	require.NoError(t, err)
	return client
}

func TestBuildCreateSendsCreatePayload(t *testing.T) {
	var captured map[string]any
	server := newTradeServer(t, http.StatusOK, rawTransaction, &captured)
	client := newTestClient(t, server)

	transaction, err := client.BuildCreate(context.Background(), CreateRequest{
		Payer:    "Payer111",
		Mint:     "Mint111",
		Metadata: TokenMetadata{Name: "Frog", Symbol: "FROG", URI: "ipfs://meta"},
	})
	require.NoError(t, err)
	require.Equal(t, base64.StdEncoding.EncodeToString(rawTransaction), transaction.Base64())

	require.Equal(t, "create", captured["action"])
	require.Equal(t, "Payer111", captured["publicKey"])
	require.Equal(t, "Mint111", captured["mint"])
	require.Equal(t, "true", captured["denominatedInSol"])
	require.Equal(t, "pump", captured["pool"])
	require.EqualValues(t, 10, captured["slippage"])
	require.EqualValues(t, 0.0005, captured["priorityFee"])
	require.Equal(t, map[string]any{"name": "Frog", "symbol": "FROG", "uri": "ipfs://meta"}, captured["tokenMetadata"])
}

func TestBuildBuyOmitsMetadata(t *testing.T) {
	var captured map[string]any
	server := newTradeServer(t, http.StatusOK, rawTransaction, &captured)
	client := newTestClient(t, server)

	_, err := client.BuildBuy(context.Background(), BuyRequest{Payer: "Voter111", Mint: "Mint111", AmountSOL: 0.01})
	require.NoError(t, err)
	require.Equal(t, "buy", captured["action"])
	require.EqualValues(t, 0.01, captured["amount"])
	_, hasMetadata := captured["tokenMetadata"]
	require.False(t, hasMetadata)
}

func TestBuildBuyReportsStatusError(t *testing.T) {
	server := newTradeServer(t, http.StatusBadRequest, []byte("bad mint"), nil)
	client := newTestClient(t, server)

	_, err := client.BuildBuy(context.Background(), BuyRequest{Payer: "Voter111", Mint: "Mint111", AmountSOL: 0.01})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	require.Equal(t, "bad mint", statusErr.Body)
}

func TestBuildBuyRejectsEmptyPayload(t *testing.T) {
	server := newTradeServer(t, http.StatusOK, nil, nil)
	client := newTestClient(t, server)

	_, err := client.BuildBuy(context.Background(), BuyRequest{Payer: "Voter111", Mint: "Mint111", AmountSOL: 0.01})
	require.ErrorIs(t, err, ErrEmptyTransaction)
}

func TestRequestValidation(t *testing.T) {
	client, err := NewClient(ClientConfig{Endpoint: "http://127.0.0.1:1"})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.BuildBuy(ctx, BuyRequest{Mint: "Mint111"})
	require.ErrorIs(t, err, errMissingPayer)
	_, err = client.BuildCreate(ctx, CreateRequest{Payer: "Payer111"})
	require.ErrorIs(t, err, errMissingMint)
	_, err = client.BuildBuy(ctx, BuyRequest{Payer: "Payer111", Mint: "Mint111", AmountSOL: -1})
	require.ErrorIs(t, err, errInvalidAmount)

	_, err = NewClient(ClientConfig{})
	require.ErrorIs(t, err, errMissingEndpoint)
}
