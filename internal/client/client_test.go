package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/u2s/internal/models"
	"github.com/yourusername/u2s/internal/reconcile"
	"go.uber.org/zap"
)

// fakeUfanet serves the three provider endpoints from one test server
type fakeUfanet struct {
	mu         sync.Mutex
	pages      []string
	queries    []cameraQuery
	authStatus int
	authHeader string
}

func (f *fakeUfanet) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(contractAuthPath, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "contract-1", body["contract"])
		assert.Equal(t, "secret", body["password"])
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))

		if f.authStatus != 0 {
			w.WriteHeader(f.authStatus)
			return
		}
		_, _ = w.Write([]byte(`{"token":{"access":"access-1","refresh":"r"}}`))
	})
	mux.HandleFunc("/api/v0/auth/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "JWT access-1", r.Header.Get("Authorization"))
		assert.Equal(t, "86400", r.URL.Query().Get("ttl"))
		_, _ = w.Write([]byte(`{"token":"cloud-1"}`))
	})
	mux.HandleFunc(myCamerasPath, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.authHeader = r.Header.Get("Authorization")

		var query cameraQuery
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&query))
		f.queries = append(f.queries, query)

		if query.Page > len(f.pages) {
			_, _ = w.Write([]byte(`{"count":0,"next":null,"results":[]}`))
			return
		}
		_, _ = w.Write([]byte(f.pages[query.Page-1]))
	})
	return mux
}

// createRecorder keeps the monitors handed to the platform
type createRecorder struct {
	mu      sync.Mutex
	created []models.Monitor
}

func (r *createRecorder) CreateMonitor(ctx context.Context, monitor models.Monitor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, monitor)
	return nil
}

func (r *createRecorder) UpdateMonitor(ctx context.Context, monitor models.Monitor) error {
	return nil
}

func newTestUfanet(t *testing.T, fake *fakeUfanet) *UfanetClient {
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	return NewUfanetClient(NewHTTPClient(HTTPConfig{}), UfanetConfig{
		ServiceURL: server.URL + "/",
		CloudURL:   server.URL,
		User:       "contract-1",
		Password:   "secret",
		PageSize:   2,
	}, zap.NewNop())
}

func TestUfanetFetchCameras(t *testing.T) {
	t.Run("FollowsPagination", func(t *testing.T) {
		fake := &fakeUfanet{pages: []string{
			`{"count":3,"next":"page2","results":[` +
				`{"number":"1","title":"A","server":{"domain":"s1"},"token_l":"t1"},` +
				`{"number":2,"title":"B","server":{"domain":"s2"},"token_l":"t2"}]}`,
			`{"count":3,"next":null,"results":[{"number":"3","server":{"domain":"s3"},"token_l":"t3"}]}`,
		}}
		ufanet := newTestUfanet(t, fake)

		require.NoError(t, ufanet.Authenticate(context.Background()))
		cameras, err := ufanet.FetchCameras(context.Background())
		require.NoError(t, err)

		require.Len(t, cameras, 3)
		assert.Equal(t, "1", cameras[0].Number)
		assert.Equal(t, "2", cameras[1].Number)
		assert.Equal(t, "s3", cameras[2].Server.Domain)

		require.Len(t, fake.queries, 2)
		assert.Equal(t, "Bearer cloud-1", fake.authHeader)
		assert.Equal(t, models.CameraFields, fake.queries[0].Fields)
		assert.Equal(t, "title_asc", fake.queries[0].OrderBy)
		assert.Equal(t, 2, fake.queries[0].PageSize)
		assert.Equal(t, 2, fake.queries[1].Page)
	})

	t.Run("ToleratesDescriptiveFieldTypes", func(t *testing.T) {
		fake := &fakeUfanet{pages: []string{
			`{"results":[{"number":"1","server":{"domain":"d"},"token_l":"t",` +
				`"latitude":"54.73","is_public":1,"timezone":5}],"next":null}`,
		}}
		ufanet := newTestUfanet(t, fake)

		require.NoError(t, ufanet.Authenticate(context.Background()))
		cameras, err := ufanet.FetchCameras(context.Background())
		require.NoError(t, err)
		require.Len(t, cameras, 1)

		writer := &createRecorder{}
		result := reconcile.New(reconcile.Config{Writer: writer}).
			Reconcile(context.Background(), cameras, nil)
		assert.Equal(t, 1, result.Created)
		require.Len(t, writer.created, 1)
		assert.Equal(t, "https://d/1/tracks-v1a1/mono.m3u8?token=t", writer.created[0].Details.AutoHost)
	})

	t.Run("MissingResultsIsDecodeError", func(t *testing.T) {
		ufanet := newTestUfanet(t, &fakeUfanet{pages: []string{`{"detail":"oops"}`}})

		require.NoError(t, ufanet.Authenticate(context.Background()))
		_, err := ufanet.FetchCameras(context.Background())
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("IncompleteCameraIsDecodeError", func(t *testing.T) {
		ufanet := newTestUfanet(t, &fakeUfanet{pages: []string{`{"next":null,"results":[{"number":"1"}]}`}})

		require.NoError(t, ufanet.Authenticate(context.Background()))
		_, err := ufanet.FetchCameras(context.Background())
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("RequiresAuthentication", func(t *testing.T) {
		ufanet := newTestUfanet(t, &fakeUfanet{})

		_, err := ufanet.FetchCameras(context.Background())
		assert.ErrorIs(t, err, ErrAuth)
	})
}

func TestUfanetAuthenticate(t *testing.T) {
	t.Run("RejectedContract", func(t *testing.T) {
		ufanet := newTestUfanet(t, &fakeUfanet{authStatus: http.StatusBadRequest})

		err := ufanet.Authenticate(context.Background())
		assert.ErrorIs(t, err, ErrAuth)
	})

	t.Run("ServerError", func(t *testing.T) {
		ufanet := newTestUfanet(t, &fakeUfanet{authStatus: http.StatusBadGateway})

		err := ufanet.Authenticate(context.Background())
		assert.ErrorIs(t, err, ErrConnectivity)
	})

	t.Run("Unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()

		ufanet := NewUfanetClient(NewHTTPClient(HTTPConfig{}), UfanetConfig{
			ServiceURL: server.URL,
			CloudURL:   server.URL,
		}, zap.NewNop())

		err := ufanet.Authenticate(context.Background())
		assert.ErrorIs(t, err, ErrConnectivity)
	})
}

// recordedRequest captures one call made to the fake platform
type recordedRequest struct {
	Method string
	Path   string
	Body   []byte
}

func newTestShinobi(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*ShinobiClient, *[]recordedRequest) {
	var mu sync.Mutex
	var requests []recordedRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	shinobi := NewShinobiClient(NewHTTPClient(HTTPConfig{}), ShinobiConfig{
		CCTVURL:  server.URL,
		APIKey:   "api",
		GroupKey: "group",
	}, zap.NewNop())
	return shinobi, &requests
}

func TestShinobiFetchMonitors(t *testing.T) {
	t.Run("List", func(t *testing.T) {
		shinobi, requests := newTestShinobi(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"mid":"monitor1","ke":"group","details":"{}"},{"mid":"monitor2","details":"{}"}]`))
		})

		monitors, err := shinobi.FetchMonitors(context.Background())
		require.NoError(t, err)
		require.Len(t, monitors, 2)
		assert.Equal(t, "monitor1", monitors[0].MID)
		assert.Equal(t, "/api/monitor/group", (*requests)[0].Path)
		assert.Equal(t, http.MethodGet, (*requests)[0].Method)
	})

	t.Run("RefusedKey", func(t *testing.T) {
		shinobi, _ := newTestShinobi(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ok":false,"msg":"Not Authorized"}`))
		})

		_, err := shinobi.FetchMonitors(context.Background())
		assert.ErrorIs(t, err, ErrAuth)
	})

	t.Run("MonitorWithoutMid", func(t *testing.T) {
		shinobi, _ := newTestShinobi(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"name":"x"}]`))
		})

		_, err := shinobi.FetchMonitors(context.Background())
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("ServerError", func(t *testing.T) {
		shinobi, _ := newTestShinobi(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := shinobi.FetchMonitors(context.Background())
		assert.ErrorIs(t, err, ErrConnectivity)
	})
	t.Run("UnreachableHidesAPIKey", func(t *testing.T) {
		_, err := newUnreachableShinobi(t).FetchMonitors(context.Background())
		assert.ErrorIs(t, err, ErrConnectivity)
		assert.NotContains(t, err.Error(), "secret-key")
	})
}

func TestShinobiConfigureMonitor(t *testing.T) {
	monitor := models.Monitor{}
	monitor.ApplyCamera(models.Camera{Number: "7", TokenL: "tok", Server: models.CameraServer{Domain: "d"}})

	t.Run("CreateAndUpdateEndpoints", func(t *testing.T) {
		shinobi, requests := newTestShinobi(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ok":true,"msg":"Monitor Added by user"}`))
		})

		require.NoError(t, shinobi.CreateMonitor(context.Background(), monitor))
		require.NoError(t, shinobi.UpdateMonitor(context.Background(), monitor))

		require.Len(t, *requests, 2)
		assert.Equal(t, "/api/configureMonitor/group/monitor7", (*requests)[0].Path)
		assert.Equal(t, "/api/configureMonitor/group/monitor7/", (*requests)[1].Path)

		var body struct {
			Data map[string]interface{} `json:"data"`
		}
		require.NoError(t, json.Unmarshal((*requests)[0].Body, &body))
		assert.Equal(t, "monitor7", body.Data["mid"])
		assert.Equal(t, "/7/tracks-v1a1/mono.m3u8?token=tok", body.Data["path"])
		assert.JSONEq(t, `{"auto_host":"https://d/7/tracks-v1a1/mono.m3u8?token=tok"}`, body.Data["details"].(string))
	})

	t.Run("NonSuccessStatus", func(t *testing.T) {
		shinobi, _ := newTestShinobi(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})

		assert.ErrorIs(t, shinobi.CreateMonitor(context.Background(), monitor), ErrApply)
	})

	t.Run("RejectedByPlatform", func(t *testing.T) {
		shinobi, _ := newTestShinobi(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ok":false,"msg":"Invalid Data"}`))
		})

		assert.ErrorIs(t, shinobi.UpdateMonitor(context.Background(), monitor), ErrApply)
	})
	t.Run("UnreachableHidesAPIKey", func(t *testing.T) {
		shinobi := newUnreachableShinobi(t)

		err := shinobi.CreateMonitor(context.Background(), monitor)
		assert.ErrorIs(t, err, ErrApply)
		assert.ErrorIs(t, err, syscall.ECONNREFUSED)
		assert.NotContains(t, err.Error(), "secret-key")
	})
}

func newUnreachableShinobi(t *testing.T) *ShinobiClient {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	return NewShinobiClient(NewHTTPClient(HTTPConfig{}), ShinobiConfig{
		CCTVURL:  server.URL,
		APIKey:   "secret-key",
		GroupKey: "group",
	}, zap.NewNop())
}
