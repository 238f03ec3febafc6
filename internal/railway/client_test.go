package railway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railway-template-metrics/internal/domain"
)

func newTestClient(url string) *Client {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewClient("secret-token", "cus_1", "ws_1",
		WithEndpoint(url),
		WithRetryDelay(time.Millisecond),
		WithMaxDelay(5*time.Millisecond),
		WithLogger(logger),
	)
}

func TestClient_FetchEarnings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "withdrawalData", req.OperationName)
		assert.Equal(t, "cus_1", req.Variables["customerId"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"earningDetails":{
			"lifetimeEarnings": 123456,
			"availableBalance": -200,
			"templateEarnings30d": 4200,
			"lifetimeCashWithdrawals": 1000
		}}}`))
	}))
	defer server.Close()

	rec, err := newTestClient(server.URL).FetchEarnings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(123456), rec.LifetimeEarnings)
	assert.Equal(t, int64(-200), rec.AvailableBalance)
	assert.Equal(t, int64(4200), rec.TemplateEarnings30d)
	assert.Equal(t, int64(1000), rec.LifetimeCashWithdrawals)
}

func TestClient_FetchTemplates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ws_1", req.Variables["workspaceId"])

		w.Write([]byte(`{"data":{"workspaceTemplates":{"edges":[
			{"node":{"id":"tpl-a","code":"pg","name":"Postgres","description":null,
			 "tags":["db"],"languages":["sql"],"isApproved":true,"health":"87.5",
			 "projects":200,"activeProjects":91,"recentProjects":7,"totalPayout":100000}},
			{"node":{"id":"tpl-b","name":"Redis","health":64,"projects":1}},
			{"node":{"id":"tpl-c","name":"Blank"}}
		]}}}`))
	}))
	defer server.Close()

	templates, err := newTestClient(server.URL).FetchTemplates(context.Background())
	require.NoError(t, err)
	require.Len(t, templates, 3)

	a := templates[0]
	assert.Equal(t, "tpl-a", a.ID)
	assert.Equal(t, "pg", a.Code)
	assert.Empty(t, a.Description)
	assert.Equal(t, []string{"db"}, a.Tags)
	assert.True(t, a.IsApproved)
	assert.Equal(t, int64(91), a.ActiveProjects)
	assert.Equal(t, int64(100000), a.TotalPayout)

	health, err := domain.ParseHealth(a.RawHealth)
	require.NoError(t, err)
	assert.Equal(t, 88, health)

	health, err = domain.ParseHealth(templates[1].RawHealth)
	require.NoError(t, err)
	assert.Equal(t, 64, health)

	health, err = domain.ParseHealth(templates[2].RawHealth)
	require.NoError(t, err)
	assert.Equal(t, 0, health)
}

func TestClient_GraphQLErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"data":null,"errors":[{"message":"Not Authorized"}]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchEarnings(context.Background())
	require.Error(t, err)

	var gqlErrs GraphQLErrors
	require.True(t, errors.As(err, &gqlErrs))
	assert.Equal(t, "Not Authorized", gqlErrs[0].Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusBadGateway)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.Write([]byte(`{"data":{"earningDetails":{"lifetimeEarnings":7}}}`))
		}
	}))
	defer server.Close()

	rec, err := newTestClient(server.URL).FetchEarnings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.LifetimeEarnings)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	WithMaxRetries(2)(client)

	_, err := client.FetchTemplates(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchEarnings(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	WithRetryDelay(time.Hour)(client)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.FetchEarnings(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
