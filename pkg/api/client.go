package api

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/foxsync/foxsync-go/pkg/log"
	"github.com/foxsync/foxsync-go/pkg/model"
	"github.com/foxsync/foxsync-go/pkg/ratelimit"
)

// Client defaults.
const (
	DefaultBaseURL   = "https://www.foxesscloud.com"
	DefaultLang      = "en"
	DefaultTimezone  = "Europe/London"
	DefaultUserAgent = "foxsync-go/0.1"
	DefaultTimeout   = 15 * time.Second
)

// API paths.
const (
	pathDeviceList   = "/op/v0/device/list"
	pathDeviceDetail = "/op/v1/device/detail"
	pathSettingGet   = "/op/v0/device/setting/get"
	pathSettingSet   = "/op/v0/device/setting/set"
	pathBatterySoc   = "/op/v0/device/battery/soc/get"
	pathGeneration   = "/op/v0/device/generation"
	pathReportQuery  = "/op/v0/device/report/query"
	pathRealQuery    = "/op/v1/device/real/query"
	pathSchedulerGet = "/op/v1/device/scheduler/get"
	pathSchedulerSet = "/op/v1/device/scheduler/enable"
)

// ErrMissingAPIKey is returned when constructing a client without a key.
var ErrMissingAPIKey = errors.New("api key is required")

// Gate is the shared rate-limit budget every call passes through.
// *ratelimit.Limiter satisfies it.
type Gate interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
	Stats() ratelimit.Stats
}

// Config holds client configuration.
type Config struct {
	// APIKey is the account token (required).
	APIKey string

	// BaseURL overrides the API host.
	BaseURL string

	// Lang and Timezone are sent on every request.
	Lang     string
	Timezone string

	// UserAgent identifies this client.
	UserAgent string

	// Timeout bounds each HTTP round trip.
	Timeout time.Duration

	// HTTPClient overrides the underlying HTTP client (tests).
	HTTPClient *http.Client

	// Gate serializes calls behind the shared budget. Nil means
	// calls go out directly (discovery-time use, tests).
	Gate Gate

	// Audit receives one event per completed call. Nil disables.
	Audit log.Logger
}

// Client is a FoxESS Cloud OpenAPI client. Safe for concurrent use.
type Client struct {
	apiKey    string
	baseURL   string
	lang      string
	timezone  string
	userAgent string
	http      *http.Client
	gate      Gate
	audit     log.Logger
}

// NewClient creates a client from the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Lang == "" {
		cfg.Lang = DefaultLang
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Audit == nil {
		cfg.Audit = log.NoopLogger{}
	}

	return &Client{
		apiKey:    cfg.APIKey,
		baseURL:   cfg.BaseURL,
		lang:      cfg.Lang,
		timezone:  cfg.Timezone,
		userAgent: cfg.UserAgent,
		http:      cfg.HTTPClient,
		gate:      cfg.Gate,
		audit:     cfg.Audit,
	}, nil
}

// ListInverters returns the inverters owned by the account.
func (c *Client) ListInverters(ctx context.Context, page, pageSize int) ([]model.Inverter, error) {
	payload := map[string]any{"currentPage": page, "pageSize": pageSize}
	result, err := c.post(ctx, pathDeviceList, payload, "")
	if err != nil {
		return nil, err
	}

	var list deviceListResult
	if err := json.Unmarshal(result, &list); err != nil {
		return nil, &ConnectionError{Err: err}
	}
	inverters := make([]model.Inverter, 0, len(list.Data))
	for _, d := range list.Data {
		inverters = append(inverters, d.toModel())
	}
	return inverters, nil
}

// DeviceDetail returns the semi-static device detail document.
func (c *Client) DeviceDetail(ctx context.Context, sn string) (model.InverterDetail, error) {
	result, err := c.get(ctx, pathDeviceDetail, url.Values{"sn": {sn}}, sn)
	if err != nil {
		return model.InverterDetail{}, err
	}

	var detail deviceDetailWire
	if err := json.Unmarshal(result, &detail); err != nil {
		return model.InverterDetail{}, &ConnectionError{Err: err}
	}
	return detail.toModel(), nil
}

// GetSetting reads a single device setting.
func (c *Client) GetSetting(ctx context.Context, sn string, key model.SettingKey) (model.Setting, error) {
	payload := map[string]any{"sn": sn, "key": string(key)}
	result, err := c.post(ctx, pathSettingGet, payload, sn)
	if err != nil {
		return model.Setting{}, err
	}

	var item settingItemWire
	if err := json.Unmarshal(result, &item); err != nil {
		return model.Setting{}, &ConnectionError{Err: err}
	}
	return item.toModel(key), nil
}

// SetSetting writes a single device setting value. A WorkMode write
// while the scheduler is active fails with ErrnoUnsupportedFunction.
func (c *Client) SetSetting(ctx context.Context, sn string, key model.SettingKey, value model.SettingValue) error {
	payload := map[string]any{"sn": sn, "key": string(key), "value": settingValueToWire(value)}
	_, err := c.post(ctx, pathSettingSet, payload, sn)
	return err
}

// BatterySoc reads the battery SoC range settings.
func (c *Client) BatterySoc(ctx context.Context, sn string) (model.BatterySoc, error) {
	result, err := c.get(ctx, pathBatterySoc, url.Values{"sn": {sn}}, sn)
	if err != nil {
		return model.BatterySoc{}, err
	}

	var soc batterySocWire
	if err := json.Unmarshal(result, &soc); err != nil {
		return model.BatterySoc{}, &ConnectionError{Err: err}
	}
	return model.BatterySoc{MinSoc: soc.MinSoc, MinSocOnGrid: soc.MinSocOnGrid}, nil
}

// GetGeneration reads today/month/cumulative production.
func (c *Client) GetGeneration(ctx context.Context, sn string) (Generation, error) {
	result, err := c.get(ctx, pathGeneration, url.Values{"sn": {sn}}, sn)
	if err != nil {
		return Generation{}, err
	}

	var gen Generation
	if err := json.Unmarshal(result, &gen); err != nil {
		return Generation{}, &ConnectionError{Err: err}
	}
	return gen, nil
}

// ProductionReport queries the year/month/day production report.
// dimension must be "year", "month", or "day"; month and day are
// ignored when zero.
func (c *Client) ProductionReport(ctx context.Context, sn, dimension string, year, month, day int, variables []string) ([]ProductionPoint, error) {
	switch dimension {
	case "year", "month", "day":
	default:
		return nil, fmt.Errorf("dimension must be year, month, or day, got %q", dimension)
	}

	payload := map[string]any{"sn": sn, "dimension": dimension, "year": year}
	if month != 0 {
		payload["month"] = month
	}
	if day != 0 {
		payload["day"] = day
	}
	if len(variables) == 0 {
		variables = []string{
			"generation", "feedin", "gridConsumption",
			"chargeEnergyToTal", "dischargeEnergyToTal", "PVEnergyTotal",
		}
	}
	payload["variables"] = variables

	result, err := c.post(ctx, pathReportQuery, payload, sn)
	if err != nil {
		return nil, err
	}

	var points []ProductionPoint
	if err := json.Unmarshal(result, &points); err != nil {
		return nil, &ConnectionError{Err: err}
	}
	return points, nil
}

// RealtimeSnapshot reads the live measurement variables for a device.
// A nil variables slice requests everything the device reports.
func (c *Client) RealtimeSnapshot(ctx context.Context, sn string, variables []string) (map[string]model.RealtimeValue, error) {
	payload := map[string]any{"sns": []string{sn}}
	if len(variables) > 0 {
		payload["variables"] = variables
	}

	result, err := c.post(ctx, pathRealQuery, payload, sn)
	if err != nil {
		return nil, err
	}

	var devices []realtimeWire
	if err := json.Unmarshal(result, &devices); err != nil {
		return nil, &ConnectionError{Err: err}
	}

	values := make(map[string]model.RealtimeValue)
	for _, dev := range devices {
		if dev.DeviceSN != sn {
			continue
		}
		for _, item := range dev.Datas {
			n, ok := numericValue(item.Value)
			if !ok {
				continue // non-numeric diagnostics are not tracked
			}
			values[item.Variable] = model.RealtimeValue{
				Variable: item.Variable,
				Unit:     item.Unit,
				Value:    n,
			}
		}
	}
	return values, nil
}

// GetScheduler reads the scheduler configuration.
func (c *Client) GetScheduler(ctx context.Context, sn string) (model.SchedulerState, error) {
	payload := map[string]any{"deviceSN": sn}
	result, err := c.post(ctx, pathSchedulerGet, payload, sn)
	if err != nil {
		return model.SchedulerState{}, err
	}

	var info schedulerInfoWire
	if err := json.Unmarshal(result, &info); err != nil {
		return model.SchedulerState{}, &ConnectionError{Err: err}
	}

	state := model.SchedulerState{Enabled: info.Enable != 0}
	state.Groups = make(model.ScheduleSet, 0, len(info.Groups))
	for _, g := range info.Groups {
		state.Groups = append(state.Groups, groupFromWire(g))
	}
	return state, nil
}

// SetScheduler replaces the device's scheduler slots with the given
// set. The write is all-or-nothing and an empty set clears every slot.
func (c *Client) SetScheduler(ctx context.Context, sn string, groups model.ScheduleSet) error {
	wire := schedulerSetWire{DeviceSN: sn, Groups: make([]schedulerGroupWire, 0, len(groups))}
	for _, g := range groups {
		wire.Groups = append(wire.Groups, groupToWire(g))
	}

	_, err := c.post(ctx, pathSchedulerSet, wire, sn)
	return err
}

func (c *Client) post(ctx context.Context, path string, payload any, sn string) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, path, nil, payload, sn)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, sn string) (json.RawMessage, error) {
	return c.call(ctx, http.MethodGet, path, query, nil, sn)
}

// call funnels a request through the budget gate (when configured),
// performs it, and emits one audit event per request actually sent.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, payload any, sn string) (json.RawMessage, error) {
	var result json.RawMessage
	var sent bool
	var start time.Time

	run := func(ctx context.Context) error {
		sent = true
		start = time.Now()
		var err error
		result, err = c.roundTrip(ctx, method, path, query, payload)
		return err
	}

	var err error
	if c.gate != nil {
		err = c.gate.Do(ctx, run)
	} else {
		err = run(ctx)
	}

	if sent {
		c.auditCall(method, path, sn, start, err)
	}
	return result, err
}

func (c *Client) auditCall(method, path, sn string, start time.Time, err error) {
	event := log.NewEvent(log.KindCall)
	event.DeviceSN = sn
	call := &log.CallEvent{
		Endpoint: path,
		Method:   method,
		Duration: time.Since(start),
	}
	if err != nil {
		call.Errno = ErrnoOf(err)
		call.Message = err.Error()
	}
	if c.gate != nil {
		stats := c.gate.Stats()
		call.CallsUsedToday = stats.CallsUsedToday
		call.CallsLast24h = stats.CallsLast24h
	}
	event.Call = call
	c.audit.Log(event)
}

// roundTrip performs one signed HTTP request and unwraps the envelope.
func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, payload any) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Token", c.apiKey)
	req.Header.Set("Signature", c.signature(path, timestamp))
	req.Header.Set("Timestamp", timestamp)
	req.Header.Set("Lang", c.lang)
	req.Header.Set("Timezone", c.timezone)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &ConnectionError{Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &ConnectionError{Err: err}
	}
	if env.Errno == nil {
		return nil, fmt.Errorf("%w: missing errno", ErrBadResponse)
	}

	if errno := *env.Errno; errno != ErrnoSuccess {
		if errno == http.StatusUnauthorized || errno == http.StatusForbidden {
			return nil, fmt.Errorf("%w: errno %d: %s", ErrAuth, errno, env.message())
		}
		return nil, &Error{Errno: errno, Message: env.message(), Endpoint: path}
	}
	return env.Result, nil
}

// signature computes the request signature: md5 over the path, token,
// and timestamp joined by LITERAL backslash-r backslash-n pairs (the
// cloud expects the two-character sequences, not CRLF bytes).
func (c *Client) signature(path, timestamp string) string {
	text := path + `\r\n` + c.apiKey + `\r\n` + timestamp
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
