package mqtt

import (
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/foxsync/foxsync-go/pkg/model"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Config carries the broker settings for a Bridge.
type Config struct {
	// Broker is the connection URL, e.g. tcp://10.0.0.2:1883.
	Broker string

	// ClientID defaults to "foxsync-<deviceSN>".
	ClientID string
	Username string
	Password string

	// TopicPrefix is the root of all published topics. Defaults to
	// "foxsync".
	TopicPrefix string

	// DeviceSN is the second topic segment.
	DeviceSN string

	Logger *slog.Logger
}

// Bridge mirrors device snapshots onto retained MQTT topics.
type Bridge struct {
	client pahomqtt.Client
	root   string
	logger *slog.Logger
}

// NewBridge configures a bridge. The broker connection carries a last
// will that flips the availability topic to offline when the process
// dies. Call Connect before publishing.
func NewBridge(cfg Config) (*Bridge, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker is required")
	}
	if cfg.DeviceSN == "" {
		return nil, errors.New("mqtt: device serial is required")
	}
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "foxsync"
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "foxsync-" + cfg.DeviceSN
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	root := prefix + "/" + cfg.DeviceSN

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetWill(root+"/availability", "offline", 0, true)
	opts.OnConnect = func(c pahomqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker)
		c.Publish(root+"/availability", 0, true, "online")
	}
	opts.OnConnectionLost = func(_ pahomqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	}

	return &Bridge{
		client: pahomqtt.NewClient(opts),
		root:   root,
		logger: logger,
	}, nil
}

// newBridgeWithClient is the test seam; paho's Client is an interface.
func newBridgeWithClient(client pahomqtt.Client, root string, logger *slog.Logger) *Bridge {
	return &Bridge{client: client, root: root, logger: logger}
}

// Connect dials the broker.
func (b *Bridge) Connect() error {
	token := b.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return errors.New("mqtt: connect timed out")
	}
	return token.Error()
}

// Close publishes offline and disconnects.
func (b *Bridge) Close() {
	b.publish("availability", "offline")
	b.client.Disconnect(250)
}

// PublishAvailability reflects the telemetry condition. Wire it to
// the poller's condition callback.
func (b *Bridge) PublishAvailability(online bool) {
	payload := "online"
	if !online {
		payload = "offline"
	}
	b.publish("availability", payload)
}

// PublishState mirrors one device snapshot. Topics are retained so a
// consumer that connects between refreshes still sees the last data.
func (b *Bridge) PublishState(s model.DeviceState) {
	for _, variable := range sortedRealtime(s.Realtime) {
		v := s.Realtime[variable]
		b.publish("realtime/"+variable, formatFloat(v.Value))
	}
	for _, key := range sortedSettings(s.Settings) {
		b.publish("settings/"+string(key), s.Settings[key].Value.Raw)
	}
	b.publish("scheduler/enabled", strconv.FormatBool(s.Scheduler.Enabled))
	b.publish("scheduler/groups", strconv.Itoa(len(s.Scheduler.Groups)))
	b.publish("battery/min_soc", strconv.Itoa(s.Battery.MinSoc))
	b.publish("battery/min_soc_on_grid", strconv.Itoa(s.Battery.MinSocOnGrid))
	if !s.FetchedAt.IsZero() {
		b.publish("fetched_at", s.FetchedAt.UTC().Format(time.RFC3339))
	}
}

func (b *Bridge) publish(suffix, payload string) {
	topic := b.root + "/" + suffix
	token := b.client.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		b.logger.Warn("mqtt publish timed out", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		b.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func sortedRealtime(m map[string]model.RealtimeValue) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedSettings(m map[model.SettingKey]model.Setting) []model.SettingKey {
	out := make([]model.SettingKey, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
