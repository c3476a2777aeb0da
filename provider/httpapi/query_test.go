package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goliatone/go-hosted"
	"github.com/goliatone/go-hosted/provider/httpapi"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func TestQuerySelect(t *testing.T) {
	userID := uuid.New()
	rows := []row{{ID: uuid.New(), Name: "alpha"}, {ID: uuid.New(), Name: "beta"}}

	var gotReq *http.Request
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		json.NewEncoder(w).Encode(rows)
	}))

	var got []row
	err := client.From("projects").
		Select().
		Eq("user_id", userID.String()).
		Order("created_at", true).
		Do(context.Background(), &got)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].Name)

	require.NotNil(t, gotReq)
	assert.Equal(t, http.MethodGet, gotReq.Method)
	assert.Equal(t, "/rest/v1/projects", gotReq.URL.Path)

	params := gotReq.URL.Query()
	assert.Equal(t, "*", params.Get("select"))
	assert.Equal(t, "eq."+userID.String(), params.Get("user_id"))
	assert.Equal(t, "created_at.desc", params.Get("order"))

	assert.Equal(t, testAnonKey, gotReq.Header.Get("apikey"))
	assert.Equal(t, "Bearer "+testAnonKey, gotReq.Header.Get("Authorization"), "anon key without a session")
	assert.Empty(t, gotReq.Header.Get("Prefer"))
}

func TestQuerySelectColumns(t *testing.T) {
	var gotReq *http.Request
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		w.Write([]byte("[]"))
	}))

	err := client.From("projects").Select("id", "name").Do(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "id,name", gotReq.URL.Query().Get("select"))
}

func TestQueryInsert(t *testing.T) {
	userID := uuid.New()
	accessToken := mintToken(t, userID, "pepe.rone@example.com", time.Now().Add(time.Hour))

	tokens := httpapi.NewMemoryTokenStore()
	require.NoError(t, tokens.Save(context.Background(), &hosted.Session{
		AccessToken: accessToken,
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	var gotReq *http.Request
	var gotBody row

	client := newTestClientWithTokens(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(gotBody)
	}), tokens)

	record := row{ID: uuid.New(), Name: "fresh"}
	var created row
	err := client.From("projects").
		Insert(record).
		Single().
		Do(context.Background(), &created)
	require.NoError(t, err)
	assert.Equal(t, record.ID, created.ID)

	assert.Equal(t, http.MethodPost, gotReq.Method)
	assert.Equal(t, "/rest/v1/projects", gotReq.URL.Path)
	assert.Equal(t, "return=representation", gotReq.Header.Get("Prefer"))
	assert.Equal(t, "application/vnd.pgrst.object+json", gotReq.Header.Get("Accept"))
	assert.Equal(t, "application/json", gotReq.Header.Get("Content-Type"))
	assert.Equal(t, "Bearer "+accessToken, gotReq.Header.Get("Authorization"), "row-level security needs the user token")
	assert.Equal(t, "fresh", gotBody.Name)
}

func TestQueryUpdate(t *testing.T) {
	id := uuid.New()

	var gotReq *http.Request
	var gotBody map[string]any

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(row{ID: id, Name: "renamed"})
	}))

	var updated row
	err := client.From("projects").
		Update(map[string]any{"name": "renamed"}).
		Eq("id", id.String()).
		Single().
		Do(context.Background(), &updated)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)

	assert.Equal(t, http.MethodPatch, gotReq.Method)
	assert.Equal(t, "eq."+id.String(), gotReq.URL.Query().Get("id"))
	assert.Equal(t, "return=representation", gotReq.Header.Get("Prefer"))
	assert.Equal(t, map[string]any{"name": "renamed"}, gotBody)
}

func TestQueryDelete(t *testing.T) {
	id := uuid.New()

	var gotReq *http.Request
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		w.WriteHeader(http.StatusNoContent)
	}))

	err := client.From("projects").
		Delete().
		Eq("id", id.String()).
		Do(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, http.MethodDelete, gotReq.Method)
	assert.Equal(t, "eq."+id.String(), gotReq.URL.Query().Get("id"))
	assert.Empty(t, gotReq.URL.Query().Get("select"))
}

func TestQueryVerbMisuse(t *testing.T) {
	called := false
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	err := client.From("projects").
		Select().
		Delete().
		Do(context.Background(), nil)
	require.Error(t, err)
	assert.False(t, called, "a misbuilt query never reaches the wire")
}

func TestQueryRequiresTable(t *testing.T) {
	client := newTestClient(t, http.NewServeMux())

	err := client.From("  ").Select().Do(context.Background(), nil)
	require.Error(t, err)
}

func TestQueryExpiredSessionRefreshesBeforeRequest(t *testing.T) {
	userID := uuid.New()
	expiredToken := mintToken(t, userID, "pepe.rone@example.com", time.Now().Add(-time.Hour))
	freshToken := mintToken(t, userID, "pepe.rone@example.com", time.Now().Add(time.Hour))

	var gotTableAuth string

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  freshToken,
			"refresh_token": "rotated-refresh-token",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("/rest/v1/projects", func(w http.ResponseWriter, r *http.Request) {
		gotTableAuth = r.Header.Get("Authorization")
		w.Write([]byte("[]"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	tokens := httpapi.NewMemoryTokenStore()
	require.NoError(t, tokens.Save(context.Background(), &hosted.Session{
		AccessToken:  expiredToken,
		RefreshToken: "stale-refresh-token",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))

	client, err := httpapi.New(httpapi.Config{
		Config:     hosted.Config{ServiceURL: srv.URL, AnonKey: testAnonKey},
		TokenStore: tokens,
	})
	require.NoError(t, err)

	err = client.From("projects").Select().Do(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+freshToken, gotTableAuth)
}
