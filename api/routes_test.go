package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/GlintPay/gccs-vault/backend/vault"
	"github.com/GlintPay/gccs-vault/config"
	"github.com/GlintPay/gccs-vault/environment"
	"github.com/GlintPay/gccs-vault/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

var traceServerName = fmt.Sprintf("server-%d", rand.Int())

const testToken = "s.test-token"

const resolvedAccounts = `{"a":"b123","b":"c234","c":"d","currencies[0]":"USD","currencies[1]":"EUR","currencies[2]":"ABC","link":"https://live.com/api","site.retries":"5","site.timeout":"5","site.url":"https://live.com"}`

func Test_routes(t *testing.T) {
	vaultServer, fake := startVault(t, vaultSecrets())
	router := setUpRouter(t, vaultServer.URL, setUp{})

	precedence := "accounts,production > accounts > application,production > application"

	tests := []ExampleRequest{
		{
			method:     "GET",
			url:        "/xxxxx",
			statusCode: 404,
			jsonOutput: `404 page not found`,
		},
		{
			method:     "GET",
			url:        "/accounts/production",
			statusCode: 200,
			jsonOutput: `{"name":"accounts","profiles":["production"],"label":"","version":"","state":null,"propertySources":[` +
				`{"name":"vault:accounts,production","source":{"site.retries":"5","site.timeout":"5","site.url":"https://live.com"}},` +
				`{"name":"vault:accounts","source":{"currencies[0]":"USD","currencies[1]":"EUR","currencies[2]":"ABC","site.retries":"0","site.timeout":"50","site.url":"https://test.com"}},` +
				`{"name":"vault:application,production","source":{"a":"b123","b":"c234"}},` +
				`{"name":"vault:application","source":{"a":"b","b":"c","c":"d","link":"${site.url}/api"}}]}`,
			headers: http.Header{
				"Content-Type": []string{"application/json"},
			},
		},
		{
			method:     "GET",
			url:        "/accounts/production?resolve=true",
			statusCode: 200,
			jsonOutput: resolvedAccounts,
			headers:    resolutionHeaders("accounts", "production", "", precedence),
		},
		{
			method:     "GET",
			url:        "/accounts/production/main?resolve=true",
			statusCode: 200,
			jsonOutput: resolvedAccounts,
			headers:    resolutionHeaders("accounts", "production", "main", precedence),
		},
		{
			method:     "GET",
			url:        "/accounts/default,production?resolve=true",
			statusCode: 200,
			jsonOutput: resolvedAccounts,
			headers:    resolutionHeaders("accounts", "default,production", "", precedence),
		},
		{
			method:     "GET",
			url:        "/accounts/production?resolve=true&unflatten=true",
			statusCode: 200,
			jsonOutput: `{"a":"b123","b":"c234","c":"d","currencies[0]":"USD","currencies[1]":"EUR","currencies[2]":"ABC","link":"https://live.com/api","site":{"retries":"5","timeout":"5","url":"https://live.com"}}`,
			headers:    resolutionHeaders("accounts", "production", "", precedence),
		},
		{
			method:     "GET",
			url:        "/somethingelse/production?resolve=true&pretty=true",
			statusCode: 200,
			jsonOutput: `{
  "a": "b123",
  "b": "c234",
  "c": "d",
  "link": "/api"
}`,
			headers: resolutionHeaders("somethingelse", "production", "", "application,production > application"),
		},
		{
			method:     "PATCH",
			url:        "/accounts/production?resolve=true",
			body:       strings.NewReader(`{"^d":"low","^c":"ignored","a":"patched"}`),
			statusCode: 200,
			jsonOutput: `{"a":"patched","b":"c234","c":"d","currencies[0]":"USD","currencies[1]":"EUR","currencies[2]":"ABC","d":"low","link":"https://live.com/api","site.retries":"5","site.timeout":"5","site.url":"https://live.com"}`,
			headers:    resolutionHeaders("accounts", "production", "", precedence),
		},
		{
			method:     "PATCH",
			url:        "/accounts/production?resolve=true",
			statusCode: 200,
			jsonOutput: resolvedAccounts,
			headers:    resolutionHeaders("accounts", "production", "", precedence),
		},
		{
			method:     "PATCH",
			url:        "/accounts/production?resolve=true",
			body:       strings.NewReader(`[1,2]`),
			statusCode: 400,
			jsonOutput: `{"message":"injected properties: json: cannot unmarshal array into Go value of type api.InjectedProperties"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.url, func(t *testing.T) {
			validateRequest(t, tt, router, http.Header{"X-Config-Token": []string{testToken}})
		})
	}

	for _, each := range fake.recorded() {
		assert.Equal(t, testToken, each.token)
		assert.Equal(t, http.MethodGet, each.method)
	}
}

func Test_routesMissingToken(t *testing.T) {
	vaultServer, fake := startVault(t, vaultSecrets())
	router := setUpRouter(t, vaultServer.URL, setUp{})

	for _, method := range []string{"GET", "PATCH"} {
		validateRequest(t, ExampleRequest{
			method:     method,
			url:        "/accounts/production?resolve=true",
			statusCode: 400,
			jsonOutput: `{"message":"missing required header: X-Config-Token"}`,
		}, router, nil)
	}

	assert.Empty(t, fake.recorded())
}

func Test_routesWatchState(t *testing.T) {
	vaultServer, _ := startVault(t, vaultSecrets())
	router := setUpRouter(t, vaultServer.URL, setUp{watch: environment.WatchFunc(func(state string) *string {
		next := state + "+1"
		return &next
	})})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/nothing/production", nil)
	req.Header.Set("X-Config-Token", testToken)
	req.Header.Set("X-Config-State", "abc")
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var env environment.Environment
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.NotNil(t, env.State)
	assert.Equal(t, "abc+1", *env.State)
	assert.Equal(t, "nothing", env.Name)
	assert.Len(t, env.PropertySources, 2)
}

func Test_routesVaultFailure(t *testing.T) {
	secrets := vaultSecrets()
	secrets["/v1/secret/accounts"] = fakeSecret{status: http.StatusServiceUnavailable, body: `{"errors":["maintenance"]}`}

	vaultServer, fake := startVault(t, secrets)
	router := setUpRouter(t, vaultServer.URL, setUp{})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/accounts/production?resolve=true", nil)
	req.Header.Set("X-Config-Token", testToken)
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "backend read of [accounts] failed with status 503")

	// nothing beyond the failed key is read
	require.Len(t, fake.recorded(), 2)
	assert.Equal(t, "/v1/secret/accounts", fake.recorded()[1].path)
}

func Test_routesVaultV2(t *testing.T) {
	vaultServer, _ := startVault(t, map[string]fakeSecret{
		"/v1/kv/data/accounts": {status: 200, body: `{"data":{"data":"a: 1\nb:\n  - x\n  - y\n","metadata":{"version":3}}}`},
	})
	router := setUpRouter(t, vaultServer.URL, setUp{vault: config.VaultConfig{Backend: "kv", Version: config.VaultV2}})

	validateRequest(t, ExampleRequest{
		method:     "GET",
		url:        "/accounts/default?resolve=true",
		statusCode: 200,
		jsonOutput: `{"a":"1","b[0]":"x","b[1]":"y"}`,
		headers:    resolutionHeaders("accounts", "default", "", "accounts"),
	}, router, http.Header{"X-Config-Token": []string{testToken}})
}

func Test_routesTraceEnabled(t *testing.T) {
	vaultServer, _ := startVault(t, vaultSecrets())

	sr := tracetest.NewSpanRecorder()
	tracerProvider := sdktrace.NewTracerProvider()
	tracerProvider.RegisterSpanProcessor(sr)
	otel.SetTracerProvider(tracerProvider)

	router := setUpRouter(t, vaultServer.URL, setUp{traceEnabled: true})

	tt := ExampleRequest{
		method:     "GET",
		url:        "/accounts/production?resolve=true",
		statusCode: 200,
		jsonOutput: resolvedAccounts,
	}

	validateRequest(t, tt, router, http.Header{"X-Config-Token": []string{testToken}})

	spans := sr.Ended()
	require.Len(t, spans, 7)

	for i, key := range []string{"accounts,production", "accounts", "application,production", "application"} {
		assertSpan(t, spans[i], "vault-read", trace.SpanKindClient, attribute.String("vault.key", key))
	}

	assertSpan(t, spans[4], "findOne", trace.SpanKindServer, attribute.String("application", "accounts"))
	assertSpan(t, spans[5], "reconcile", trace.SpanKindServer)

	assertSpan(t, spans[6],
		"/{application}/{profiles}",
		trace.SpanKindServer,
		attribute.String("http.server_name", traceServerName),
		attribute.Int("http.status_code", http.StatusOK),
		attribute.String("http.method", "GET"),
		attribute.String("http.target", "/accounts/production?resolve=true"),
		attribute.String("http.route", "/{application}/{profiles}"),
	)

	assert.Equal(t, spans[6].SpanContext().TraceID(), spans[0].SpanContext().TraceID())
}

func Test_routesResponseLoggingEnabled(t *testing.T) {
	vaultServer, _ := startVault(t, vaultSecrets())
	router := setUpRouter(t, vaultServer.URL, setUp{})

	var str bytes.Buffer
	log.Logger = zerolog.New(&str).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	validateRequest(t, ExampleRequest{
		method:     "GET",
		url:        "/accounts/production?resolve=true&logResponses=true",
		statusCode: 200,
		jsonOutput: resolvedAccounts,
	}, router, http.Header{"X-Config-Token": []string{testToken}})

	logOutput := str.String()
	assert.Contains(t, logOutput, "Requesting: [accounts]/[production]/[]")
	assert.Contains(t, logOutput, "Response: {")
}

func Test_routesResponseErrorsLogged(t *testing.T) {
	secrets := vaultSecrets()
	secrets["/v1/secret/application,junk"] = v1Secret("junk sdasdasda")

	vaultServer, _ := startVault(t, secrets)
	router := setUpRouter(t, vaultServer.URL, setUp{})

	var str bytes.Buffer
	logging.Setup(&str, "info")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/accounts/junk?resolve=true", nil)
	req.Header.Set("X-Config-Token", testToken)
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "unparseable payload at [application,junk]")

	logOutput := str.String()
	assert.Contains(t, logOutput, "unparseable payload at [application,junk]")
	assert.Contains(t, logOutput, "api/routes.go") // caller
}

func Test_statusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(environment.ErrNoApplication))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}

func validateRequest(t *testing.T, tt ExampleRequest, router http.Handler, headers http.Header) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(tt.method, tt.url, tt.body)
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	router.ServeHTTP(rr, req)

	assert.Equal(t, tt.statusCode, rr.Code)
	assert.Equal(t, tt.jsonOutput, strings.TrimSpace(rr.Body.String()))

	if tt.headers != nil {
		assert.Equal(t, tt.headers, rr.Header())
	}
}

func resolutionHeaders(name string, profiles string, label string, precedence string) http.Header {
	return http.Header{
		"Content-Type":                          []string{"application/json"},
		"X-Resolution-Version":                  []string{""},
		"X-Resolution-Label":                    []string{label},
		"X-Resolution-Name":                     []string{name},
		"X-Resolution-Profiles":                 []string{profiles},
		"X-Resolution-Precedencedisplaymessage": []string{precedence},
	}
}

type setUp struct {
	vault        config.VaultConfig
	watch        environment.Watch
	traceEnabled bool
}

func setUpRouter(t *testing.T, vaultUrl string, s setUp) *chi.Mux {
	u, err := url.Parse(vaultUrl)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	appConfig := config.ApplicationConfiguration{
		Vault: s.vault,
		Tracing: config.Tracing{
			Enabled: s.traceEnabled,
		},
	}
	appConfig.Vault.Host = u.Hostname()
	appConfig.Vault.Port = port

	vb := &vault.Backend{}
	require.NoError(t, vb.Init(context.Background(), appConfig))
	t.Cleanup(vb.Close)

	router := chi.NewRouter()
	router.Use(middleware.StripSlashes)

	routing := Routing{
		ServerName:   traceServerName,
		ParentRouter: router,

		AppConfig:  appConfig,
		Repository: environment.NewRepository(vb, appConfig.Vault, s.watch, s.traceEnabled),
	}

	router.Route("/", func(r chi.Router) {
		require.NoError(t, routing.SetupFunctionalRoutes(r))
	})
	return router
}

type fakeSecret struct {
	status int
	body   string
}

func v1Secret(document string) fakeSecret {
	body, _ := json.Marshal(map[string]any{"data": document})
	return fakeSecret{status: http.StatusOK, body: string(body)}
}

func vaultSecrets() map[string]fakeSecret {
	return map[string]fakeSecret{
		"/v1/secret/accounts,production": v1Secret(`
site:
  url: https://live.com
  timeout: 5
  retries: 5
`),
		"/v1/secret/accounts": v1Secret(`
site:
  url: https://test.com
  timeout: 50
  retries: 0
currencies:
  - USD
  - EUR
  - ABC
`),
		"/v1/secret/application,production": {status: http.StatusOK, body: `{"data":{"a":"b123","b":"c234"}}`},
		"/v1/secret/application": v1Secret(`
a: b
b: c
c: d
link: ${site.url}/api
`),
	}
}

type recordedRequest struct {
	method string
	path   string
	token  string
}

type fakeVault struct {
	sync.Mutex
	secrets  map[string]fakeSecret
	requests []recordedRequest
}

func startVault(t *testing.T, secrets map[string]fakeSecret) (*httptest.Server, *fakeVault) {
	fake := &fakeVault{secrets: secrets}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return server, fake
}

func (f *fakeVault) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.Lock()
	f.requests = append(f.requests, recordedRequest{method: r.Method, path: r.URL.Path, token: r.Header.Get("X-Vault-Token")})
	f.Unlock()

	secret, ok := f.secrets[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":[]}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(secret.status)
	_, _ = w.Write([]byte(secret.body))
}

func (f *fakeVault) recorded() []recordedRequest {
	f.Lock()
	defer f.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

type ExampleRequest struct {
	method     string
	url        string
	body       io.Reader
	statusCode int
	jsonOutput string
	headers    http.Header
}

func assertSpan(t *testing.T, span sdktrace.ReadOnlySpan, name string, kind trace.SpanKind, attrs ...attribute.KeyValue) {
	assert.Equal(t, name, span.Name())
	assert.Equal(t, kind, span.SpanKind())

	got := make(map[attribute.Key]attribute.Value, len(span.Attributes()))
	for _, a := range span.Attributes() {
		got[a.Key] = a.Value
	}
	for _, want := range attrs {
		if !assert.Contains(t, got, want.Key) {
			continue
		}
		assert.Equal(t, got[want.Key], want.Value)
	}
}
