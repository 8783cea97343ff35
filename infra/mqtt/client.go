package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremqtt "github.com/kilianp07/truckhub/core/mqtt"
	"github.com/kilianp07/truckhub/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string      `json:"broker"`
	ClientID    string      `json:"client_id"`
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	TopicPrefix string      `json:"topic_prefix"`
	QoS         byte        `json:"qos"`
	Retain      bool        `json:"retain"`
	UseTLS      bool        `json:"use_tls"`
	ClientCert  string      `json:"client_cert"`
	ClientKey   string      `json:"client_key"`
	CABundle    string      `json:"ca_bundle"`
	MaxRetries  int         `json:"max_retries"`
	BackoffMS   int         `json:"backoff_ms"`
	TimeoutMS   int         `json:"timeout_ms"`
	TLSConfig   *tls.Config `json:"-"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "truckhub-" + uuid.NewString()[:8]
	}
	c.TopicPrefix = strings.TrimSuffix(c.TopicPrefix, "/")
	if c.TopicPrefix == "" {
		c.TopicPrefix = "truckhub"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 5000
	}
}

// StatusTopic carries the retained online/offline state of the publisher.
func (c Config) StatusTopic() string { return c.TopicPrefix + "/status" }

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// PahoPublisher implements coremqtt.Publisher using Eclipse Paho.
type PahoPublisher struct {
	cli     pahoClient
	cfg     Config
	backoff time.Duration
	timeout time.Duration
	log     logger.Logger
}

var _ coremqtt.Publisher = (*PahoPublisher)(nil)

// NewPahoPublisher connects to the broker and announces itself on the status topic.
func NewPahoPublisher(cfg Config) (*PahoPublisher, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_publisher")
	opts.OnConnect = func(paho.Client) { log.Infof("MQTT connected to %s", cfg.Broker) }
	opts.OnConnectionLost = func(_ paho.Client, err error) { log.Errorf("connection lost: %v", err) }
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) { log.Warnf("reconnecting to MQTT broker") }

	p := &PahoPublisher{
		cfg:     cfg,
		backoff: time.Duration(cfg.BackoffMS) * time.Millisecond,
		timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		log:     log,
	}
	c := newMQTTClient(opts)
	if err := p.wait(c.Connect()); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	p.cli = c
	if err := p.wait(c.Publish(cfg.StatusTopic(), cfg.QoS, true, "online")); err != nil {
		log.Warnf("status publish failed: %v", err)
	}
	return p, nil
}

// NewClientOptions builds mqtt client options from Config. The last will
// marks the publisher offline on the status topic.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.TopicPrefix != "" {
		opts.SetWill(cfg.StatusTopic(), "offline", cfg.QoS, true)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, coremqtt.ErrTLSConfig
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (p *PahoPublisher) wait(tok paho.Token) error {
	if !tok.WaitTimeout(p.timeout) {
		return coremqtt.ErrPublishTimeout
	}
	return tok.Error()
}

// Topic joins the prefix and a relative topic.
func (p *PahoPublisher) Topic(topic string) string {
	return p.cfg.TopicPrefix + "/" + strings.TrimPrefix(topic, "/")
}

// Publish sends v as JSON, retrying with exponential backoff.
func (p *PahoPublisher) Publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	full := p.Topic(topic)
	var publishErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(p.backoff * time.Duration(1<<(attempt-1)))
		}
		publishErr = p.wait(p.cli.Publish(full, p.cfg.QoS, p.cfg.Retain, payload))
		if publishErr == nil {
			return nil
		}
		p.log.Warnw("publish attempt failed", map[string]any{"topic": full, "attempt": attempt + 1, "error": publishErr.Error()})
	}
	return publishErr
}

// Disconnect marks the publisher offline and closes the connection.
func (p *PahoPublisher) Disconnect() {
	if p.cli == nil || !p.cli.IsConnected() {
		return
	}
	if err := p.wait(p.cli.Publish(p.cfg.StatusTopic(), p.cfg.QoS, true, "offline")); err != nil {
		p.log.Warnf("status publish failed: %v", err)
	}
	p.cli.Disconnect(250)
}
