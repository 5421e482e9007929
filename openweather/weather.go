package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/steakoverflow/weather"
)

const DefaultBaseURL = "https://history.openweathermap.org/data/2.5/aggregated/list"

type Client struct {
	logger            *zap.Logger
	openWeatherAPIKey string
	baseURL           string
	httpClient        *http.Client
	validate          *validator.Validate
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func NewClient(logger *zap.Logger, openWeatherAPIKey string, opts ...Option) *Client {
	c := &Client{
		logger:            logger,
		openWeatherAPIKey: openWeatherAPIKey,
		baseURL:           DefaultBaseURL,
		httpClient:        http.DefaultClient,
		validate:          validator.New(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// response is the provider body. Pointers tell a missing field from a zero one.
type response struct {
	Code    json.RawMessage `json:"cod"`
	Message string          `json:"message"`
	List    *[]item         `json:"list"`
}

type item struct {
	Dt        *int64           `json:"dt" validate:"required"`
	Humidity  *decimal.Decimal `json:"humidity" validate:"required"`
	Pressure  *decimal.Decimal `json:"pressure" validate:"required"`
	Temp      *temperature     `json:"temp" validate:"required"`
	WindSpeed *decimal.Decimal `json:"wind_speed" validate:"required"`
}

type temperature struct {
	AverageMin *decimal.Decimal `json:"average_min" validate:"required"`
	Average    *decimal.Decimal `json:"average" validate:"required"`
	AverageMax *decimal.Decimal `json:"average_max" validate:"required"`
}

func (i item) toWeatherItem() weather.WeatherItem {
	return weather.WeatherItem{
		Dt:       *i.Dt,
		Humidity: *i.Humidity,
		Pressure: *i.Pressure,
		Temp: weather.Temperature{
			AverageMin: *i.Temp.AverageMin,
			Average:    *i.Temp.Average,
			AverageMax: *i.Temp.AverageMax,
		},
		WindSpeed: *i.WindSpeed,
	}
}

// code returns the provider status code, which is sent either as a string or a number.
func (r response) code() string {
	c := strings.Trim(strings.TrimSpace(string(r.Code)), `"`)
	if c == "null" {
		return ""
	}
	return c
}

// FetchWeather issues a single GET for the query. Every failure is returned
// as an *weather.ErrorData.
func (c *Client) FetchWeather(ctx context.Context, query string) (*weather.WeatherModel, error) {
	reqURL, err := c.buildURL(query)
	if err != nil {
		return nil, failure("error building request: %v", err)
	}

	c.logger.Debug("requesting weather information", zap.String("url", c.redact(reqURL)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, failure("error building request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, failure("error making request: %v", c.redactErr(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failure("error reading response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("weather provider returned an error", zap.Int("status", resp.StatusCode))

		var apiErr response
		if err := json.Unmarshal(body, &apiErr); err == nil && strings.TrimSpace(apiErr.Message) != "" {
			return nil, &weather.ErrorData{Message: apiErr.Message}
		}
		return nil, failure("unexpected response status: %s", resp.Status)
	}

	return c.decode(body)
}

// decode turns a 2xx body into a model. The provider also reports errors with
// a 200 status, so the cod and message fields are checked before the list.
func (c *Client) decode(body []byte) (*weather.WeatherModel, error) {
	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, failure("error parsing response: %v", err)
	}

	if code := r.code(); code != "" && code != "200" {
		if msg := strings.TrimSpace(r.Message); msg != "" {
			return nil, &weather.ErrorData{Message: msg}
		}
		return nil, failure("unexpected response code: %s", code)
	}

	if r.List == nil {
		if msg := strings.TrimSpace(r.Message); msg != "" {
			return nil, &weather.ErrorData{Message: msg}
		}
		return nil, failure("error parsing response: missing list")
	}

	model := &weather.WeatherModel{List: make([]weather.WeatherItem, 0, len(*r.List))}
	for i, it := range *r.List {
		if err := c.validate.Struct(it); err != nil {
			return nil, failure("error parsing response: item %d: %v", i, err)
		}
		model.List = append(model.List, it.toWeatherItem())
	}

	return model, nil
}

func (c *Client) buildURL(query string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("q", query)
	if c.openWeatherAPIKey != "" {
		q.Set("appid", c.openWeatherAPIKey)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (c *Client) redact(s string) string {
	if c.openWeatherAPIKey == "" {
		return s
	}
	return strings.ReplaceAll(s, url.QueryEscape(c.openWeatherAPIKey), "REDACTED")
}

// url.Error embeds the request URL, which carries the API key.
func (c *Client) redactErr(err error) string {
	return c.redact(err.Error())
}

func failure(format string, args ...interface{}) *weather.ErrorData {
	return &weather.ErrorData{Message: fmt.Sprintf(format, args...)}
}
