package pocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(endpoints ...string) *HTTPClient {
	return NewHTTPWithOpts(Opts{Endpoints: endpoints, RPS: 1000, Burst: 1000, Timeout: 2 * time.Second})
}

func TestHeight(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, latestBlockPath, r.URL.Path)
		_, _ = w.Write([]byte(`{"block":{"header":{"height":"1234"}}}`))
	}))
	defer srv.Close()

	h, err := newTestClient(srv.URL).Height(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1234), h)
}

func TestBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/cosmos/bank/v1beta1/balances/pokt1abc/by_denom", r.URL.Path)
		require.Equal(t, Denom, r.URL.Query().Get("denom"))
		_, _ = w.Write([]byte(`{"balance":{"denom":"upokt","amount":"500"}}`))
	}))
	defer srv.Close()

	b, err := newTestClient(srv.URL).Balance(context.Background(), "pokt1abc")
	require.NoError(t, err)
	require.Equal(t, int64(500), b)
}

func TestSupplierNotFoundIsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":5,"message":"supplier not found"}`))
	}))
	defer srv.Close()

	s, err := newTestClient(srv.URL).Supplier(context.Background(), "pokt1missing")
	require.NoError(t, err)
	require.Nil(t, s)
}

func TestSupplierDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"supplier":{
			"owner_address":"pokt1owner",
			"operator_address":"pokt1op",
			"stake":{"denom":"upokt","amount":"60000000000"},
			"unstake_session_end_height":"0",
			"services":[{"service_id":"anvil","endpoints":[{"url":"https://anvil.example","rpc_type":"JSON_RPC","configs":[]}],
				"rev_share":[{"address":"pokt1owner","rev_share_percentage":"100"}]}],
			"service_config_history":[{"operator_address":"pokt1op","service":{"service_id":"anvil"},"activation_height":"10","deactivation_height":"0"}]
		}}`))
	}))
	defer srv.Close()

	s, err := newTestClient(srv.URL).Supplier(context.Background(), "pokt1op")
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Equal(t, "pokt1owner", s.OwnerAddress)
	stake, err := s.StakeAmount()
	require.NoError(t, err)
	require.Equal(t, int64(60_000_000_000), stake)
	require.Len(t, s.Services, 1)
	require.Equal(t, RPCTypeJSONRPC, s.Services[0].Endpoints[0].RPCType)
	require.Equal(t, uint64(100), s.Services[0].RevShare[0].RevSharePercentage)
	require.Equal(t, int64(10), s.ServiceConfigHistory[0].ActivationHeight)
	require.False(t, s.Pristine())
}

func TestFailoverToNextEndpoint(t *testing.T) {
	var badHits int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&badHits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"block":{"header":{"height":"7"}}}`))
	}))
	defer good.Close()

	h, err := newTestClient(bad.URL, good.URL).Height(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(7), h)
	require.Equal(t, int32(1), atomic.LoadInt32(&badHits))
}

func TestSubmitTransaction(t *testing.T) {
	var got broadcastRequest
	code := uint32(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, broadcastPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(txResponseEnvelope{TxResponse: txResponse{TxHash: "ABCDEF", Code: code, RawLog: "insufficient fees"}})
	}))
	defer srv.Close()
	c := newTestClient(srv.URL)

	res, err := c.SubmitTransaction(context.Background(), "0a0b0c")
	require.NoError(t, err)
	require.Equal(t, "ABCDEF", res.TransactionHash)
	require.Equal(t, broadcastModeSync, got.Mode)
	raw, err := base64.StdEncoding.DecodeString(got.TxBytes)
	require.NoError(t, err)
	require.Equal(t, []byte{0x0a, 0x0b, 0x0c}, raw)

	code = 13
	res, err = c.SubmitTransaction(context.Background(), "0a0b0c")
	require.NoError(t, err)
	require.Empty(t, res.TransactionHash)
	require.Equal(t, uint32(13), res.Code)
	require.Equal(t, "insufficient fees", res.Message)

	_, err = c.SubmitTransaction(context.Background(), "  ")
	require.Error(t, err)
}

func TestVerifyTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/MISSING") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"tx_response":{"height":"99","txhash":"OK","code":0,"gas_used":"81234"}}`))
	}))
	defer srv.Close()
	c := newTestClient(srv.URL)

	v, err := c.VerifyTransaction(context.Background(), "OK")
	require.NoError(t, err)
	require.True(t, v.Success)
	require.Equal(t, int64(81234), v.GasUsed)

	_, err = c.VerifyTransaction(context.Background(), "MISSING")
	require.True(t, errors.Is(err, ErrTxNotFound))
}

func TestStakeSupplierSignsWithOperatorKey(t *testing.T) {
	kp, err := GenerateKey()
	require.NoError(t, err)

	var accountCalls, broadcasts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/cosmos/auth/v1beta1/account_info/"):
			atomic.AddInt32(&accountCalls, 1)
			require.True(t, strings.HasSuffix(r.URL.Path, kp.Address))
			_, _ = w.Write([]byte(`{"info":{"address":"` + kp.Address + `","account_number":"42","sequence":"3"}}`))
		case r.URL.Path == broadcastPath:
			atomic.AddInt32(&broadcasts, 1)
			var req broadcastRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.NotEmpty(t, req.TxBytes)
			_, _ = w.Write([]byte(`{"tx_response":{"txhash":"HASH","code":0}}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()
	c := newTestClient(srv.URL)

	params := StakeSupplierParams{
		ChainID:         "pocket",
		PrivateKeyHex:   kp.PrivateKeyHex,
		OwnerAddress:    "pokt1owner",
		OperatorAddress: kp.Address,
		Services: []ServiceConfig{{
			ServiceID: "anvil",
			Endpoints: []Endpoint{{URL: "https://anvil.example", RPCType: RPCTypeJSONRPC}},
			RevShare:  []RevShare{{Address: "pokt1owner", RevSharePercentage: 100}},
		}},
	}
	res, err := c.StakeSupplier(context.Background(), params)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "HASH", res.TransactionHash)

	cached, ok := c.accountNumbers.Load(kp.Address)
	require.True(t, ok)
	require.Equal(t, uint64(42), cached)
	require.Equal(t, int32(1), atomic.LoadInt32(&broadcasts))

	params.OperatorAddress = "pokt1someoneelse"
	_, err = c.StakeSupplier(context.Background(), params)
	require.Error(t, err)
}

func TestRPCTypeJSON(t *testing.T) {
	var e Endpoint
	require.NoError(t, json.Unmarshal([]byte(`{"url":"u","rpc_type":"REST"}`), &e))
	require.Equal(t, RPCTypeREST, e.RPCType)
	require.NoError(t, json.Unmarshal([]byte(`{"url":"u","rpc_type":2}`), &e))
	require.Equal(t, RPCTypeWebsocket, e.RPCType)
	require.Error(t, json.Unmarshal([]byte(`{"url":"u","rpc_type":"CARRIER_PIGEON"}`), &e))

	b, err := json.Marshal(Endpoint{URL: "u", RPCType: RPCTypeGRPC})
	require.NoError(t, err)
	require.JSONEq(t, `{"url":"u","rpc_type":"GRPC"}`, string(b))
}
