package accountapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"consent-console/internal/domain"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testEnv(base string) domain.Environment {
	return domain.Environment{
		ServerBaseURL: base,
		Realm:         "demo",
		Locale:        "de",
		Token:         oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok-123", TokenType: "Bearer"}),
	}
}

func TestClient_FetchApplications(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/auth/realms/demo/account/applications", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "de", r.Header.Get("Accept-Language"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"clientId":"app1","clientName":"App One","effectiveUrl":"https://one.example",
			 "consent":{"createdDate":1700000000000,"lastUpdatedDate":"2023-11-14T22:13:20Z",
			            "grantedScopes":[{"id":"s1","name":"profile"}]}},
			{"clientId":"cli","offlineAccess":true}
		]`))
	}))
	defer srv.Close()

	clients, err := NewClient(WithHTTPClient(srv.Client())).FetchApplications(context.Background(), testEnv(srv.URL+"/auth"))
	require.NoError(t, err)
	require.Len(t, clients, 2)

	assert.Equal(t, "App One", clients[0].DisplayName())
	require.NotNil(t, clients[0].Consent)
	assert.Equal(t, int64(1700000000000), clients[0].Consent.CreatedDate.UnixMilli())
	assert.True(t, clients[0].Consent.LastUpdatedDate.Equal(clients[0].Consent.CreatedDate.Time))
	assert.Equal(t, "profile", clients[0].Consent.GrantedScopes[0].Name)
	assert.Nil(t, clients[1].Consent)
	assert.True(t, clients[1].Revocable())
}

func TestClient_FetchApplicationsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`null`))
	}))
	defer srv.Close()

	clients, err := NewClient().FetchApplications(context.Background(), testEnv(srv.URL))
	require.NoError(t, err)
	assert.NotNil(t, clients)
	assert.Empty(t, clients)
}

func TestClient_DeleteConsent(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewClient().DeleteConsent(context.Background(), testEnv(srv.URL), "my app/1")
	require.NoError(t, err)
	assert.Equal(t, "/realms/demo/account/applications/my%20app%2F1/consent", gotPath)
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"unauthorized", http.StatusUnauthorized, "", func(t *testing.T, err error) {
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		}},
		{"forbidden", http.StatusForbidden, "", func(t *testing.T, err error) {
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		}},
		{"not found", http.StatusNotFound, "", func(t *testing.T, err error) {
			assert.ErrorIs(t, err, domain.ErrNotFound)
		}},
		{"server error with json body", http.StatusInternalServerError, `{"errorMessage":"Consent store unavailable"}`, func(t *testing.T, err error) {
			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, 500, se.Code)
			assert.Equal(t, "Consent store unavailable", se.Description())
			assert.True(t, IsStatus(err, 500))
		}},
		{"bad gateway without body", http.StatusBadGateway, "", func(t *testing.T, err error) {
			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, "Bad Gateway", se.Description())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient().FetchApplications(context.Background(), testEnv(srv.URL))
			require.Error(t, err)
			tt.check(t, err)

			err = NewClient().DeleteConsent(context.Background(), testEnv(srv.URL), "app1")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestClient_RequiresEnvironment(t *testing.T) {
	_, err := NewClient().FetchApplications(context.Background(), domain.Environment{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = NewClient().DeleteConsent(context.Background(), testEnv("http://localhost"), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestClient_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient().FetchApplications(ctx, testEnv(srv.URL))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_TracingPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(WithHTTPClient(srv.Client()), WithTracing())

	_, err := c.FetchApplications(context.Background(), testEnv(srv.URL))
	require.NoError(t, err)

	ctx, seg := xray.BeginSegment(context.Background(), "accountapi-test")
	defer seg.Close(nil)
	_, err = c.FetchApplications(ctx, testEnv(srv.URL))
	require.NoError(t, err)
}
