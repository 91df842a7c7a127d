package calendar

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

var cot = time.FixedZone("COT", -5*3600)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *GoogleGateway {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	gw, err := NewGoogleGateway(context.Background(), GoogleConfig{
		CalendarID: "clinic-cal",
		Location:   cot,
		Timeout:    2 * time.Second,
	}, zerolog.Nop(),
		option.WithEndpoint(ts.URL+"/"),
		option.WithHTTPClient(ts.Client()),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return gw
}

func TestNewGoogleGatewayRequiresCalendarID(t *testing.T) {
	_, err := NewGoogleGateway(context.Background(), GoogleConfig{}, zerolog.Nop())
	require.Error(t, err)
}

func TestGoogleGatewayQueryBusy(t *testing.T) {
	var got map[string]any
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/freeBusy"), r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"calendars":{"clinic-cal":{"busy":[{"start":"2025-11-17T13:00:00Z","end":"2025-11-17T13:30:00Z"}]}}}`))
	})

	from := time.Date(2025, time.November, 17, 8, 0, 0, 0, cot)
	busy, err := gw.QueryBusy(context.Background(), from, from.Add(9*time.Hour+30*time.Minute))
	require.NoError(t, err)
	require.Len(t, busy, 1)
	assert.True(t, busy[0].Start.Equal(from))
	assert.Equal(t, 8, busy[0].Start.Hour())
	assert.Equal(t, 30*time.Minute, busy[0].End.Sub(busy[0].Start))

	assert.Equal(t, "2025-11-17T08:00:00-05:00", got["timeMin"])
	items, ok := got["items"].([]any)
	require.True(t, ok)
	assert.Equal(t, "clinic-cal", items[0].(map[string]any)["id"])
}

func TestGoogleGatewayQueryBusyCalendarError(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"calendars":{"clinic-cal":{"errors":[{"domain":"global","reason":"notFound"}]}}}`))
	})

	_, err := gw.QueryBusy(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notFound")
}

func TestGoogleGatewayQueryBusyServerError(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":500,"message":"backend"}}`, http.StatusInternalServerError)
	})

	_, err := gw.QueryBusy(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)
}

func TestGoogleGatewayInsertEvent(t *testing.T) {
	var got map[string]any
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/calendars/clinic-cal/events"), r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"evt-1","htmlLink":"https://calendar.example/evt-1","summary":"[Primera vez] Ana (Sura)",
			"start":{"dateTime":"2025-11-17T08:00:00-05:00"},"end":{"dateTime":"2025-11-17T08:20:00-05:00"}}`))
	})

	start := time.Date(2025, time.November, 17, 8, 0, 0, 0, cot)
	ev, err := gw.InsertEvent(context.Background(), NewEvent{
		Summary:  "[Primera vez] Ana (Sura)",
		Location: "Consultorio 707",
		Start:    start,
		End:      start.Add(20 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", ev.ID)
	assert.Equal(t, "https://calendar.example/evt-1", ev.Link)
	assert.True(t, ev.Start.Equal(start))

	assert.Equal(t, "Consultorio 707", got["location"])
	assert.Equal(t, "COT", got["start"].(map[string]any)["timeZone"])
}

func TestGoogleGatewayDeleteEvent(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "none", r.URL.Query().Get("sendUpdates"))
		if strings.HasSuffix(r.URL.Path, "/events/gone") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, gw.DeleteEvent(context.Background(), "evt-1"))
	assert.ErrorIs(t, gw.DeleteEvent(context.Background(), "gone"), ErrEventNotFound)
}

func TestGoogleGatewayListEvents(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		q := r.URL.Query()
		assert.Equal(t, "true", q.Get("singleEvents"))
		assert.Equal(t, "startTime", q.Get("orderBy"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"id":"allday","summary":"Holiday","start":{"date":"2025-11-19"},"end":{"date":"2025-11-20"}},
			{"id":"evt-2","summary":"[Control presencial] Luis (Sura)","description":"Cédula: 123",
			 "start":{"dateTime":"2025-11-19T20:10:00Z"},"end":{"dateTime":"2025-11-19T20:25:00Z"}}
		]}`))
	})

	from := time.Date(2025, time.November, 19, 14, 45, 0, 0, cot)
	events, err := gw.ListEvents(context.Background(), from, from.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.True(t, events[0].AllDay)
	assert.False(t, events[1].AllDay)
	assert.Equal(t, "evt-2", events[1].ID)
	assert.Equal(t, 15, events[1].Start.Hour())
	assert.Equal(t, 10, events[1].Start.Minute())
	assert.Equal(t, "Cédula: 123", events[1].Description)
}
