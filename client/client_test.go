package client

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listing = `[
  {"id": 1, "brand": "Honda", "model": "CB500F", "model_year": 2021, "user_id": 1, "url": "/bikes/1.json"},
  {"id": 2, "brand": "Ducati", "model": "Monster", "model_year": 2019, "user_id": 1, "url": "/bikes/2.json"},
  {"id": 3, "brand": "BMW", "model": "R nineT", "model_year": 2018, "user_id": 2, "url": "/bikes/3.json"}
]`

func bikesServer(t *testing.T, status int, body string) (*httptest.Server, *int) {
	t.Helper()
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/bikes.json", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func wait(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("mount did not finish")
	}
}

func TestListBikes(t *testing.T) {
	srv, _ := bikesServer(t, http.StatusOK, listing)

	bikes, err := New(srv.URL + "/").ListBikes(context.Background())
	require.NoError(t, err)
	require.Len(t, bikes, 3)
	assert.Equal(t, Bike{ID: 1, Brand: "Honda", Model: "CB500F", ModelYear: 2021, UserID: 1, URL: "/bikes/1.json"}, bikes[0])
}

func TestListBikesErrorStatus(t *testing.T) {
	srv, _ := bikesServer(t, http.StatusInternalServerError, `{"error":"Internal server error"}`)

	_, err := New(srv.URL).ListBikes(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestBikesPageRendersOneRowPerBike(t *testing.T) {
	srv, hits := bikesServer(t, http.StatusOK, listing)
	log, _ := test.NewNullLogger()
	page := NewBikesPage(New(srv.URL), log)

	var before bytes.Buffer
	require.NoError(t, page.Render(&before))
	assert.Equal(t, 0, strings.Count(before.String(), `<tr class="bike">`))

	wait(t, page.Mount(context.Background()))

	var out bytes.Buffer
	require.NoError(t, page.Render(&out))
	assert.Equal(t, 3, strings.Count(out.String(), `<tr class="bike">`))
	assert.Contains(t, out.String(), "<td>R nineT</td>")
	assert.Contains(t, out.String(), "<th>year</th>")
	assert.Equal(t, 1, *hits)
}

func TestBikesPageLogsFetchErrors(t *testing.T) {
	srv, _ := bikesServer(t, http.StatusOK, `not json`)
	log, hook := test.NewNullLogger()
	page := NewBikesPage(New(srv.URL), log)

	wait(t, page.Mount(context.Background()))

	assert.Empty(t, page.Bikes())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)

	var out bytes.Buffer
	require.NoError(t, page.Render(&out))
	assert.Equal(t, 0, strings.Count(out.String(), `<tr class="bike">`))
}
