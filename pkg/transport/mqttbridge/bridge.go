// Package mqttbridge tunnels the raw byte stream of a hexprot
// session over an MQTT broker, for labs whose remote rig is only
// reachable through a message broker rather than a direct serial
// link. It wraps a Queue (a subscribe/publish convenience layer over
// paho.mqtt.golang) and presents the same hexprot.Transport interface
// as the physical transports, so the protocol core stays unaware of
// the tunnel.
package mqttbridge

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/labhex/hexprot/pkg/hexprot"
)

// Queue wraps an MQTT client with topic-prefixed subscribe/publish
// helpers.
type Queue struct {
	Client      paho.Client
	TopicPrefix string
}

// ClientOptionsFromURL parses a broker URL of the form
// mqtt://[user[:pass]@]host:port/topic-prefix?client-id=... into
// paho client options and a topic prefix.
func ClientOptionsFromURL(brokerURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, "", err
	}
	scheme := u.Scheme
	if scheme == "" || scheme == "mqtt" {
		scheme = "tcp"
	}
	server := scheme + "://" + u.Host

	prefix := strings.TrimPrefix(u.Path, "/")

	opts := paho.NewClientOptions()
	opts.AddBroker(server).SetAutoReconnect(true).SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	if id := u.Query().Get("client-id"); id != "" {
		opts.SetClientID(id)
	}
	return opts, prefix, nil
}

// NewQueueFromURL builds a Queue ready to Connect.
func NewQueueFromURL(brokerURL string) (*Queue, error) {
	opts, prefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	return &Queue{Client: paho.NewClient(opts), TopicPrefix: prefix}, nil
}

// Bridge implements hexprot.Transport, hexprot.Timeouts and
// hexprot.Purger by publishing writes to a tx topic and replaying the
// bytes of every message received on an rx topic through a byte
// channel, so the protocol core's byte-at-a-time state machine is
// exercised identically to the physical transports.
type Bridge struct {
	queue   *Queue
	txTopic string
	rxTopic string

	bytes   chan byte
	timeout time.Duration
}

// New connects queue and subscribes to the rx topic under prefix.
func New(queue *Queue, prefix string, timeout time.Duration) (*Bridge, error) {
	b := &Bridge{
		queue:   queue,
		txTopic: queue.TopicPrefix + prefix + "/tx",
		rxTopic: queue.TopicPrefix + prefix + "/rx",
		bytes:   make(chan byte, 4096),
		timeout: timeout,
	}
	token := queue.Client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqttbridge: connect: %w", err)
	}
	subToken := queue.Client.Subscribe(b.rxTopic, 0, b.onMessage)
	subToken.Wait()
	if err := subToken.Error(); err != nil {
		return nil, fmt.Errorf("mqttbridge: subscribe %s: %w", b.rxTopic, err)
	}
	return b, nil
}

func (b *Bridge) onMessage(_ paho.Client, msg paho.Message) {
	glog.V(3).Infof("mqttbridge: rx %q (%d bytes)", msg.Topic(), len(msg.Payload()))
	for _, by := range msg.Payload() {
		b.bytes <- by
	}
}

// Close disconnects the underlying MQTT client.
func (b *Bridge) Close() error {
	b.queue.Client.Disconnect(250)
	return nil
}

// WriteByte implements hexprot.Transport by publishing a one-byte
// payload.
func (b *Bridge) WriteByte(by byte) error {
	return b.WriteBuffer([]byte{by})
}

// WriteBuffer implements hexprot.Transport by publishing buf as a
// single MQTT message.
func (b *Bridge) WriteBuffer(buf []byte) error {
	token := b.queue.Client.Publish(b.txTopic, 0, false, buf)
	token.Wait()
	return token.Error()
}

// HasByte implements hexprot.Transport.
func (b *Bridge) HasByte() bool {
	return len(b.bytes) > 0
}

// ReadByte implements hexprot.Transport.
func (b *Bridge) ReadByte() (byte, error) {
	select {
	case by := <-b.bytes:
		return by, nil
	case <-time.After(b.timeout):
		return 0, fmt.Errorf("mqttbridge: read timeout")
	}
}

// ReadUntilTerminator implements hexprot.Transport.
func (b *Bridge) ReadUntilTerminator(max int) ([]byte, error) {
	out := make([]byte, 0, max)
	for {
		by, err := b.ReadByte()
		if err != nil {
			return nil, err
		}
		if by == hexprot.TERM {
			return out, nil
		}
		out = append(out, by)
	}
}

// SetAnswerTimeout implements hexprot.Timeouts.
func (b *Bridge) SetAnswerTimeout(d time.Duration) (time.Duration, error) {
	prev := b.timeout
	b.timeout = d
	return prev, nil
}

// Purge implements hexprot.Purger by draining any buffered bytes.
func (b *Bridge) Purge() error {
	for {
		select {
		case <-b.bytes:
		default:
			return nil
		}
	}
}
