package openweather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/steakoverflow/weather"
)

const sampleBody = `{
  "cod": "200",
  "list": [
    {"dt": 1634601600, "humidity": 81.5, "pressure": 1012.25,
     "temp": {"average_min": 280.00, "average": 290.0, "average_max": 300.00}, "wind_speed": 3.6},
    {"dt": 1634688000, "humidity": 70, "pressure": 1009,
     "temp": {"average_min": 278.15, "average": 281.0, "average_max": 284.15}, "wind_speed": 5}
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(zap.NewNop(), "secret", WithBaseURL(srv.URL+"/data"), WithHTTPClient(srv.Client()))
}

func requireErrorData(t *testing.T, err error) *weather.ErrorData {
	t.Helper()

	var ed *weather.ErrorData
	require.True(t, errors.As(err, &ed), "expected *weather.ErrorData, got %T", err)
	require.NotEmpty(t, ed.Message)
	return ed
}

func TestFetchWeatherDecodesList(t *testing.T) {
	var gotQuery, gotKey string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotKey = r.URL.Query().Get("appid")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleBody))
	})

	model, err := client.FetchWeather(context.Background(), "São Paulo, BR")
	require.NoError(t, err)
	require.Len(t, model.List, 2)

	assert.Equal(t, "São Paulo, BR", gotQuery)
	assert.Equal(t, "secret", gotKey)

	first := model.List[0]
	assert.Equal(t, int64(1634601600), first.Dt)
	assert.True(t, first.Humidity.Equal(decimal.RequireFromString("81.5")))
	assert.True(t, first.Pressure.Equal(decimal.RequireFromString("1012.25")))
	assert.True(t, first.Temp.AverageMin.Equal(decimal.RequireFromString("280")))
	assert.True(t, first.Temp.AverageMax.Equal(decimal.RequireFromString("300")))
	assert.True(t, first.WindSpeed.Equal(decimal.RequireFromString("3.6")))
}

func TestFetchWeatherEmptyListIsSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cod":"200","list":[]}`))
	})

	model, err := client.FetchWeather(context.Background(), "x")
	require.NoError(t, err)
	assert.NotNil(t, model.List)
	assert.Empty(t, model.List)
}

func TestFetchWeatherNumericSuccessCode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cod":200,"list":[]}`))
	})

	model, err := client.FetchWeather(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, model.List)
}

func TestFetchWeatherRejectsUnexpectedShape(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "error body with ok status", body: `{"cod":"404","message":"city not found"}`, want: "city not found"},
		{name: "error code without message", body: `{"cod":"500","list":[]}`, want: "unexpected response code: 500"},
		{name: "message without list", body: `{"message":"quota exceeded"}`, want: "quota exceeded"},
		{name: "missing list", body: `{"cod":"200"}`, want: "error parsing response: missing list"},
		{name: "null list", body: `{"cod":"200","list":null}`, want: "error parsing response: missing list"},
		{name: "item without temp", body: `{"cod":"200","list":[{"dt":1634601600,"humidity":81.5,"pressure":1012,"wind_speed":3.6}]}`, want: "error parsing response: item 0"},
		{name: "item with only dt", body: `{"list":[{"dt":1634601600}]}`, want: "error parsing response: item 0"},
		{name: "temp missing average_max", body: `{"list":[{"dt":1,"humidity":1,"pressure":1,"wind_speed":1,"temp":{"average_min":280,"average":290}}]}`, want: "error parsing response: item 0"},
		{name: "null item", body: `{"list":[null]}`, want: "error parsing response: item 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			model, err := client.FetchWeather(context.Background(), "x")
			assert.Nil(t, model)
			assert.Contains(t, requireErrorData(t, err).Message, tt.want)
		})
	}
}

func TestFetchWeatherProviderMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"cod":"404","message":"city not found"}`))
	})

	model, err := client.FetchWeather(context.Background(), "atlantis")
	assert.Nil(t, model)
	assert.Equal(t, "city not found", requireErrorData(t, err).Message)
}

func TestFetchWeatherNumericCode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"cod":401,"message":"Invalid API key."}`))
	})

	_, err := client.FetchWeather(context.Background(), "x")
	assert.Equal(t, "Invalid API key.", requireErrorData(t, err).Message)
}

func TestFetchWeatherGenericStatusMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	})

	_, err := client.FetchWeather(context.Background(), "x")
	assert.Equal(t, "unexpected response status: 502 Bad Gateway", requireErrorData(t, err).Message)
}

func TestFetchWeatherDecodeFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"list": "nope"}`))
	})

	model, err := client.FetchWeather(context.Background(), "x")
	assert.Nil(t, model)
	assert.Contains(t, requireErrorData(t, err).Message, "error parsing response")
}

func TestFetchWeatherUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	client := NewClient(zap.NewNop(), "secret", WithBaseURL(addr))

	model, err := client.FetchWeather(context.Background(), "x")
	assert.Nil(t, model)

	ed := requireErrorData(t, err)
	assert.Contains(t, ed.Message, "error making request")
	assert.NotContains(t, ed.Message, "secret")
}

func TestFetchWeatherCancelledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleBody))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchWeather(ctx, "x")
	requireErrorData(t, err)
}

func TestBuildURLKeepsBaseQuery(t *testing.T) {
	client := NewClient(zap.NewNop(), "", WithBaseURL("https://example.test/agg?units=standard"))

	got, err := client.buildURL("New York")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/agg?q=New+York&units=standard", got)
}
