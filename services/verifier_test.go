package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newMirrorVerifier(t *testing.T, handler http.Handler) *MirrorNodeVerifier {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	v := NewMirrorNodeVerifier(server.URL)
	v.HTTPClient = server.Client()
	return v
}

func TestVerifyNativeTransactionSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/transactions/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transactions":[{
			"transaction_id":"0.0.5555-1700000000-000000001",
			"result":"SUCCESS",
			"entity_id":"0.0.19264",
			"transfers":[
				{"account":"0.0.5555","amount":-1000},
				{"account":"0.0.19264","amount":900}
			]}]}`))
	})
	v := newMirrorVerifier(t, mux)

	result, err := v.Verify(context.Background(), "0.0.5555-1700000000-000000001", "0.0.5555", "0.0.19264")
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.NotNil(t, result.Transaction)
	require.NotEmpty(t, result.RawPayload)
}

func TestVerifyFailedStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/transactions/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transactions":[{"transaction_id":"x","result":"CONTRACT_REVERT_EXECUTED"}]}`))
	})
	v := newMirrorVerifier(t, mux)

	result, err := v.Verify(context.Background(), "0.0.1-2-3", "", "")
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Contains(t, result.Error, "CONTRACT_REVERT_EXECUTED")
}

func TestVerifyMissingStatusCountsAsSuccess(t *testing.T) {
	// The index omits the status field on some successful records; absence
	// must not burn the submitted hash.
	mux := http.NewServeMux()
	mux.HandleFunc("/transactions/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transactions":[{"transaction_id":"x","entity_id":"0.0.19264"}]}`))
	})
	v := newMirrorVerifier(t, mux)

	result, err := v.Verify(context.Background(), "0.0.1-2-3", "", "0.0.19264")
	require.NoError(t, err)
	require.True(t, result.Valid)
}

func TestVerifyResolvesEVMAddressBeforeMatching(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"account":"0.0.5555"}`))
	})
	mux.HandleFunc("/transactions/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transactions":[{
			"transaction_id":"x","result":"SUCCESS",
			"transfers":[{"account":"0.0.5555","amount":-42},{"account":"0.0.19264","amount":42}]}]}`))
	})
	v := newMirrorVerifier(t, mux)

	result, err := v.Verify(context.Background(), "0.0.1-2-3", "0xabcd000000000000000000000000000000000001", "")
	require.NoError(t, err)
	require.True(t, result.Valid)
}

func TestVerifySenderMismatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/transactions/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transactions":[{
			"transaction_id":"x","result":"SUCCESS",
			"transfers":[{"account":"0.0.9999","amount":-42}]}]}`))
	})
	v := newMirrorVerifier(t, mux)

	result, err := v.Verify(context.Background(), "0.0.1-2-3", "0.0.5555", "")
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Contains(t, result.Error, "from address mismatch")
}

func TestVerifyRecipientMatchesViaCreditTransfer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/transactions/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transactions":[{
			"transaction_id":"x","result":"SUCCESS","entity_id":"",
			"transfers":[{"account":"0.0.19264","amount":100}]}]}`))
	})
	v := newMirrorVerifier(t, mux)

	result, err := v.Verify(context.Background(), "0.0.1-2-3", "", "0.0.19264")
	require.NoError(t, err)
	require.True(t, result.Valid)
}

func TestVerifyUnresolvableAccountSkipsMatching(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/transactions/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transactions":[{"transaction_id":"x","result":"SUCCESS"}]}`))
	})
	v := newMirrorVerifier(t, mux)

	result, err := v.Verify(context.Background(), "0.0.1-2-3", "0xabcd000000000000000000000000000000000001", "")
	require.NoError(t, err)
	require.True(t, result.Valid)
}

func TestVerifyEVMHashFallsBackToContractResults(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/transactions/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/contracts/results/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"contract_id":"0.0.19264","gas_used":50000}`))
	})
	v := newMirrorVerifier(t, mux)

	result, err := v.Verify(context.Background(), "0xdeadbeef", "", "")
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, "CONTRACTCALL", result.Transaction.Name)
}

func TestVerifyContractResultErrorMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/transactions/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/contracts/results/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"contract_id":"0.0.19264","error_message":"INSUFFICIENT_GAS"}`))
	})
	v := newMirrorVerifier(t, mux)

	result, err := v.Verify(context.Background(), "0xdeadbeef", "", "")
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Contains(t, result.Error, "INSUFFICIENT_GAS")
}

func TestVerifyNativeIDNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/transactions/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	v := newMirrorVerifier(t, mux)

	result, err := v.Verify(context.Background(), "0.0.1-2-3", "", "")
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Contains(t, result.Error, "not found")
}

func TestVerifyTransportFailureIsAnError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	client := server.Client()
	url := server.URL
	server.Close() // connection refused from here on

	v := NewMirrorNodeVerifier(url)
	v.HTTPClient = client

	_, err := v.Verify(context.Background(), "0.0.1-2-3", "", "")
	require.Error(t, err)
}
