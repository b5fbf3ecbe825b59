package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"go-sa-licence-decoder/barcode"
	"go-sa-licence-decoder/barcode/barcodetest"
	"go-sa-licence-decoder/document/sadl"
	"go-sa-licence-decoder/document/sadl/sadltest"
	"go-sa-licence-decoder/metrics"
	"go-sa-licence-decoder/models"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"
)

var testConfig = ServerConfig{
	Host:           "localhost",
	Port:           8081,
	UseTls:         false,
	TlsCertPath:    "",
	TlsPrivKeyPath: "",
}

const testBaseURL = "http://localhost:8081"

// Key generation is slow, so all tests in the package share one key set.
var (
	testKeysOnce sync.Once
	testKeySet   *barcode.KeySet
	testV1       barcodetest.Pair
	testV2       barcodetest.Pair
)

func testKeys(t *testing.T) (*barcode.KeySet, barcodetest.Pair, barcodetest.Pair) {
	t.Helper()
	testKeysOnce.Do(func() {
		testKeySet, testV1, testV2 = barcodetest.GenerateKeySet(t)
	})
	return testKeySet, testV1, testV2
}

func newTestState(t *testing.T, cache RecordCache) *ServerState {
	t.Helper()
	keys, _, _ := testKeys(t)
	return &ServerState{
		irmaServerURL: "https://irma.example",
		decoder:       NewLicenceDecoder(keys),
		cache:         cache,
		jwtCreator:    fakeJwtCreator{jwt: "test-jwt"},
		converter:     DrivingLicenceConverterImpl{},
		metrics:       metrics.New(),
		decodeSlots:   semaphore.NewWeighted(2),
		batchWorkers:  2,
	}
}

func startTestServer(t *testing.T, state *ServerState) *Server {
	t.Helper()

	srv, err := NewServer(state, testConfig)
	require.NoError(t, err)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("server error: %v", err)
		}
	}()

	waitUntilHealthy(t, testBaseURL+"/api/health")
	t.Cleanup(func() {
		if err := srv.Stop(); err != nil {
			t.Logf("error shutting down server: %v", err)
		}
	})
	return srv
}

func waitUntilHealthy(t *testing.T, url string) {
	t.Helper()
	const maxAttempts = 50
	for i := 0; i < maxAttempts; i++ {
		if resp, err := http.Get(url); err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("server did not start in time")
}

func postJSON[T any](t *testing.T, url string, payload any) (*http.Response, []byte, *T) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(b)
	}
	resp, err := http.Post(url, "application/json", body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var v T
	_ = json.Unmarshal(respBody, &v)

	return resp, respBody, &v
}

func mustStatus(t *testing.T, resp *http.Response, want int, body []byte) {
	t.Helper()
	require.Equalf(t, want, resp.StatusCode, "body: %s", body)
}

// Request builders

func drivingLicenceBarcode(t *testing.T) []byte {
	t.Helper()
	_, v1, _ := testKeys(t)
	plaintext := sadltest.Plaintext(t, sadltest.Sample())
	return sadltest.Barcode(t, v1, barcode.Version1, plaintext, 0)
}

func decodeRequest(documentType string, raw []byte) models.DecodeRequest {
	return models.DecodeRequest{
		DocumentType: documentType,
		Barcode:      base64.StdEncoding.EncodeToString(raw),
	}
}

// test doubles

type fakeJwtCreator struct{ jwt string }

func (f fakeJwtCreator) CreateDrivingLicenceJwt(_ models.SADLData) (string, error) {
	return f.jwt, nil
}

type fakeConverter struct{ err error }

func (f fakeConverter) ToDrivingLicenceData(licence sadl.DrivingLicence) (models.SADLData, error) {
	if f.err != nil {
		return models.SADLData{}, f.err
	}
	return models.SADLData{LicenceNumber: licence.LicenceNumber}, nil
}
