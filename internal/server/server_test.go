// Integration tests for the metadata HTTP API
package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/metadata-service/internal/metrics"
	"github.com/nainya/metadata-service/pkg/datastore"
	"github.com/nainya/metadata-service/pkg/query"
)

const fixtureRoot = "../../testdata/datastore"

func setupTestServer(t *testing.T) (*Server, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	t.Cleanup(m.Close)

	store := datastore.NewStore(datastore.NewFileReader(fixtureRoot), datastore.WithRecorder(m))
	return NewServer(query.NewEngine(store), store, m, nil, Options{}), m
}

func doGet(t *testing.T, s *Server, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestHealth(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doGet(t, s, "/health/alive")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "I'm alive!", rec.Body.String())

	rec = doGet(t, s, "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "I'm ready!", rec.Body.String())
}

func TestHealthReady_StoreUnavailable(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	defer m.Close()
	store := datastore.NewStore(datastore.NewFileReader(t.TempDir()))
	s := NewServer(query.NewEngine(store), store, m, nil, Options{})

	rec := doGet(t, s, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetDataStore(t *testing.T) {
	s, m := setupTestServer(t)

	rec := doGet(t, s, "/metadata/data-store")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no", rec.Header().Get("Content-Language"))
	assert.Equal(t, ContentTypeJSON, rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	body := decodeJSON(t, rec)
	assert.Equal(t, "SSB-RAIRD", body["name"])
	versions := body["versions"].([]any)
	require.Len(t, versions, 2)
	assert.Equal(t, "0.0.0.1608000000", versions[0].(map[string]any)["version"])
	assert.Equal(t, "1.0.0.0", versions[1].(map[string]any)["version"])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.VersionQueriesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/metadata/data-store", "GET", "200")))
}

func TestParameterlessRoutesIgnoreParams(t *testing.T) {
	s, _ := setupTestServer(t)

	for _, target := range []string{"/metadata/data-store?foo=bar", "/languages?version=1.0.0.0"} {
		rec := doGet(t, s, target)
		assert.Equal(t, http.StatusOK, rec.Code, target)
	}
}

func TestUnknownParamRejected(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doGet(t, s, "/metadata/all?version=1.0.0.0&foo=bar")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, "REQUEST_VALIDATION_ERROR", body["type"])
	assert.Equal(t, 106.0, body["code"])
	assert.Equal(t, "metadata-service", body["service"])
}

func TestGetStatus(t *testing.T) {
	s, m := setupTestServer(t)

	rec := doGet(t, s, "/metadata/data-structures/status?names=TEST_PERSON_HOBBIES,TEST_PERSON_INCOME,UNKNOWN")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeJSON(t, rec)
	require.Len(t, body, 3)
	assert.Nil(t, body["UNKNOWN"])

	hobbies := body["TEST_PERSON_HOBBIES"].(map[string]any)
	assert.Equal(t, "DRAFT", hobbies["releaseStatus"])
	assert.Equal(t, 1608000000.0, hobbies["releaseTime"])

	income := body["TEST_PERSON_INCOME"].(map[string]any)
	assert.Equal(t, "RELEASED", income["releaseStatus"])
	assert.Equal(t, "ADD", income["operation"])

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StatusLookupsTotal.WithLabelValues("found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusLookupsTotal.WithLabelValues("not_found")))
}

func TestGetStatus_SingleName(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doGet(t, s, "/metadata/data-structures/status?name=TEST_PERSON_PETS")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeJSON(t, rec)
	assert.Equal(t, "TEST_PERSON_PETS", body["name"])

	rec = doGet(t, s, "/metadata/data-structures/status?name=UNKNOWN")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body = decodeJSON(t, rec)
	assert.Equal(t, "DATA_NOT_FOUND", body["type"])
	assert.Equal(t, 105.0, body["code"])
}

func TestGetStatus_Invalid(t *testing.T) {
	s, _ := setupTestServer(t)

	for _, target := range []string{
		"/metadata/data-structures/status",
		"/metadata/data-structures/status?names=",
		"/metadata/data-structures/status?name=A&names=B",
		"/metadata/data-structures/status?name=A,B",
		"/metadata/data-structures/status?names=A&version=1.0.0.0",
	} {
		rec := doGet(t, s, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestGetStructures(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doGet(t, s, "/metadata/data-structures?names=TEST_PERSON_INCOME&version=1.0.0.0")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no", rec.Header().Get("Content-Language"))

	var structures []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &structures))
	require.Len(t, structures, 1)
	assert.Equal(t, "TEST_PERSON_INCOME", structures[0]["name"])
	assert.Contains(t, structures[0], "attributeVariables")
}

func TestGetStructures_ProjectionFlags(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doGet(t, s, "/metadata/data-structures?version=1.0.0.0&include_attributes=false&skip_code_lists=true")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var structures []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &structures))
	require.Len(t, structures, 2)
	for _, ds := range structures {
		assert.NotContains(t, ds, "attributeVariables")
		measure := ds["measureVariable"].(map[string]any)
		domain := measure["representedVariables"].([]any)[0].(map[string]any)["valueDomain"].(map[string]any)
		assert.Empty(t, domain["codeList"])
		assert.Empty(t, domain["missingValues"])
	}
}

func TestGetStructures_Draft(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doGet(t, s, "/metadata/data-structures?version=0.0.0.1608000000&names=TEST_PERSON_HOBBIES")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var structures []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &structures))
	require.Len(t, structures, 1)

	rec = doGet(t, s, "/metadata/data-structures?version=0.0.0.1500000000")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, "INVALID_DRAFT_VERSION", body["type"])
	assert.Equal(t, 107.0, body["code"])
}

func TestGetStructures_Errors(t *testing.T) {
	s, _ := setupTestServer(t)

	tests := []struct {
		target string
		status int
		kind   string
	}{
		{"/metadata/data-structures?names=A", http.StatusBadRequest, "REQUEST_VALIDATION_ERROR"},
		{"/metadata/data-structures?version=1.0.0", http.StatusBadRequest, "REQUEST_VALIDATION_ERROR"},
		{"/metadata/data-structures?version=1.0.0.0&include_attributes=maybe", http.StatusBadRequest, "REQUEST_VALIDATION_ERROR"},
		{"/metadata/data-structures?version=1.0.0.0&extra=1", http.StatusBadRequest, "REQUEST_VALIDATION_ERROR"},
		{"/metadata/data-structures?version=9.9.9.0", http.StatusNotFound, "DATA_NOT_FOUND"},
	}
	for _, tt := range tests {
		rec := doGet(t, s, tt.target)
		assert.Equal(t, tt.status, rec.Code, tt.target)
		assert.Equal(t, tt.kind, decodeJSON(t, rec)["type"], tt.target)
	}
}

func TestGetAllMetadata(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doGet(t, s, "/metadata/all?version=1.0.0.0")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeJSON(t, rec)
	assert.Contains(t, body, "dataStore")
	assert.Len(t, body["dataStructures"], 2)

	rec = doGet(t, s, "/metadata/all?version=0.0.0.0")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeJSON(t, rec)["dataStructures"], 3)

	rec = doGet(t, s, "/metadata/all?version=1.0.0.0&names=A")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLanguages(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doGet(t, s, "/languages")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Language"))
	assert.JSONEq(t, `[{"code":"no","label":"Norsk"}]`, rec.Body.String())
}

func TestUnknownPath(t *testing.T) {
	s, m := setupTestServer(t)

	rec := doGet(t, s, "/unknown")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, "PATH_NOT_FOUND", body["type"])
	assert.Equal(t, 103.0, body["code"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("unmatched", "GET", "400")))

	rec = doGet(t, s, "/metadata/unknown")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "PATH_NOT_FOUND", decodeJSON(t, rec)["type"])
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/languages", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "BAD_REQUEST", decodeJSON(t, rec)["type"])
}

func TestRequestIDPropagation(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doGet(t, s, "/languages", RequestIDHeader, "abc-123")
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	assert.NotContains(t, rec.Body.String(), "requestId")
}

func TestErrorCarriesRequestID(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doGet(t, s, "/metadata/all?version=bad", RequestIDHeader, "abc-123")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "abc-123", decodeJSON(t, rec)["requestId"])

	rec = doGet(t, s, "/metadata/all?version=bad")
	generated := rec.Header().Get(RequestIDHeader)
	require.NotEmpty(t, generated)
	assert.Equal(t, generated, decodeJSON(t, rec)["requestId"])
}

func TestMsgpackEncoding(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doGet(t, s, "/metadata/data-structures/status?names=TEST_PERSON_PETS", "Accept", ContentTypeMsgpack)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentTypeMsgpack, rec.Header().Get("Content-Type"))

	var body map[string]map[string]any
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "RELEASED", body["TEST_PERSON_PETS"]["releaseStatus"])
	assert.EqualValues(t, 1607332752, body["TEST_PERSON_PETS"]["releaseTime"])

	rec = doGet(t, s, "/metadata/all?version=bad", "Accept", ContentTypeMsgpack)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var payload map[string]any
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "REQUEST_VALIDATION_ERROR", payload["type"])
}

func TestProtobufEncoding(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := doGet(t, s, "/languages", "Accept", ContentTypeProtobuf)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentTypeProtobuf, rec.Header().Get("Content-Type"))

	var value structpb.Value
	require.NoError(t, proto.Unmarshal(rec.Body.Bytes(), &value))
	languages := value.GetListValue().GetValues()
	require.Len(t, languages, 1)
	assert.Equal(t, "no", languages[0].GetStructValue().GetFields()["code"].GetStringValue())
}

func TestRecoverer(t *testing.T) {
	handler := recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, "SYSTEM_ERROR", body["type"])
	assert.Equal(t, 202.0, body["code"])
}
