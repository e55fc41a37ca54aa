package iracing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"carnumbers/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	server     *httptest.Server
	authCalls  atomic.Int32
	rejectAuth bool
	expireOnce atomic.Bool
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}
	mux := http.NewServeMux()

	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		api.authCalls.Add(1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if api.rejectAuth || body["password"] != HashPassword("hunter2", "Bot@Example.com") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "authtoken_members", Value: "ok", Path: "/"})
		w.WriteHeader(http.StatusOK)
	})

	requireSession := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if _, err := r.Cookie("authtoken_members"); err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if api.expireOnce.CompareAndSwap(true, false) {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc("/data/league/seasons", requireSession(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("league_id") {
		case "100":
			_, _ = w.Write([]byte(`{"seasons":[{"season_id":5},{"season_id":9},{"season_id":7}]}`))
		case "200":
			_, _ = w.Write([]byte(`{"seasons":[]}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))

	mux.HandleFunc("/data/league/season_standings", requireSession(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("season_id") != "9" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"link": api.server.URL + "/blob/standings"})
	}))

	mux.HandleFunc("/blob/standings", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"standings":[
			{"cust_id":1,"display_name":"Alice","car_number":"7"},
			{"cust_id":2,"display_name":"Bob","car_number":0},
			{"cust_id":3,"display_name":"Cara","car_number":null},
			{"cust_id":4,"display_name":"Dan","car_number":""},
			{"cust_id":5,"display_name":"Eve","car_number":12},
			{"cust_id":6,"display_name":"Finn","car_number":"A1"},
			{"cust_id":7,"display_name":"Gus","car_number":"07"}
		]}`))
	})

	mux.HandleFunc("/data/member/get", requireSession(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cust_ids") == "1" {
			_, _ = w.Write([]byte(`{"members":[{"cust_id":1,"display_name":"Alice Racer"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"members":[]}`))
	}))

	mux.HandleFunc("/data/league/get", requireSession(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("league_id") == "100" {
			_, _ = w.Write([]byte(`{"league_id":100,"league_name":"Thursday Night Thunder"}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))

	api.server = httptest.NewServer(mux)
	t.Cleanup(api.server.Close)
	return api
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:  api.server.URL,
		Username: "Bot@Example.com",
		Password: "hunter2",
		Timeout:  5 * time.Second,
	}, nil)
	require.NoError(t, err)
	return client
}

func TestHashPassword(t *testing.T) {
	assert.Equal(t, HashPassword("secret", "User@Example.com"), HashPassword("secret", "user@example.com"))
	assert.NotEqual(t, HashPassword("secret", "a@example.com"), HashPassword("secret", "b@example.com"))
	assert.Len(t, HashPassword("x", "y"), 44)
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{Username: "only"}, nil)
	assert.Error(t, err)
}

func TestFetchRoster_LatestSeasonAndNumbers(t *testing.T) {
	api := newFakeAPI(t)
	client := newTestClient(t, api)

	roster, err := client.FetchRoster(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, roster, 7)

	n, ok := roster[0].AssignedNumber()
	assert.True(t, ok)
	assert.Equal(t, 7, n)
	assert.Equal(t, "Alice", roster[0].DisplayName)

	for _, idx := range []int{1, 2, 3} {
		_, ok := roster[idx].AssignedNumber()
		assert.False(t, ok, roster[idx].DisplayName)
	}

	n, ok = roster[4].AssignedNumber()
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	// A non-numeric value leaves only that member unassigned.
	_, ok = roster[5].AssignedNumber()
	assert.False(t, ok)

	n, ok = roster[6].AssignedNumber()
	assert.True(t, ok)
	assert.Equal(t, 7, n)
}

func TestFetchRoster_ReusesSession(t *testing.T) {
	api := newFakeAPI(t)
	client := newTestClient(t, api)

	_, err := client.FetchRoster(context.Background(), 100)
	require.NoError(t, err)
	_, err = client.FetchRoster(context.Background(), 100)
	require.NoError(t, err)

	assert.Equal(t, int32(1), api.authCalls.Load())
}

func TestFetchRoster_ReauthenticatesOnRejectedSession(t *testing.T) {
	api := newFakeAPI(t)
	client := newTestClient(t, api)

	_, err := client.FetchRoster(context.Background(), 100)
	require.NoError(t, err)

	api.expireOnce.Store(true)
	_, err = client.FetchRoster(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, int32(2), api.authCalls.Load())
}

func TestFetchRoster_Failures(t *testing.T) {
	api := newFakeAPI(t)
	client := newTestClient(t, api)

	_, err := client.FetchRoster(context.Background(), 200)
	var fe *common.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, int64(200), fe.LeagueID)

	_, err = client.FetchRoster(context.Background(), 300)
	assert.True(t, common.IsFetchError(err))
}

func TestFetchRoster_AuthRejected(t *testing.T) {
	api := newFakeAPI(t)
	api.rejectAuth = true
	client := newTestClient(t, api)

	_, err := client.FetchRoster(context.Background(), 100)
	assert.True(t, common.IsFetchError(err))
	assert.Contains(t, err.Error(), "authentication failed")
}

func TestLookupMember(t *testing.T) {
	api := newFakeAPI(t)
	client := newTestClient(t, api)

	member, err := client.LookupMember(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Alice Racer", member.DisplayName)

	_, err = client.LookupMember(context.Background(), 99)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestLookupLeague(t *testing.T) {
	api := newFakeAPI(t)
	client := newTestClient(t, api)

	league, err := client.LookupLeague(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, "Thursday Night Thunder", league.LeagueName)

	_, err = client.LookupLeague(context.Background(), 404)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
