// internal/sink/mqtt/publisher.go
package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-regsync/internal/event"
)

// MaxQueueSize bounds the outgoing publication queue.
const MaxQueueSize = 256

// Config is the broker configuration.
type Config struct {
	Broker    string
	Port      int
	ClientID  string
	Username  string
	Password  string
	UseTLS    bool
	RootTopic string
}

// Writer receives write requests arriving from the broker.
// poller.Group satisfies it.
type Writer interface {
	SubmitSingle(unit uint8, addr int, value uint16) (bool, error)
	SubmitMulti(unit uint8, values []uint16) error
}

// Publisher mirrors events to an MQTT broker and, when a Writer is set,
// turns write requests from the broker into pending writes.
//
// Event delivery never blocks the emitter: messages are queued and published
// by a single worker; when the queue is full the message is dropped.
type Publisher struct {
	cfg Config
	log zerolog.Logger

	mu      sync.RWMutex
	client  pahomqtt.Client
	running bool
	writer  Writer

	queue    chan message
	stopChan chan struct{}
	wg       sync.WaitGroup
	dropped  atomic.Uint64
}

func NewPublisher(cfg Config, log zerolog.Logger) *Publisher {
	if cfg.RootTopic == "" {
		cfg.RootTopic = "regsync"
	}
	return &Publisher{
		cfg:      cfg,
		log:      log,
		queue:    make(chan message, MaxQueueSize),
		stopChan: make(chan struct{}),
	}
}

// SetWriter enables write requests from the broker.
func (p *Publisher) SetWriter(w Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writer = w
}

// Address returns the broker URL.
func (p *Publisher) Address() string {
	if p.cfg.UseTLS {
		return fmt.Sprintf("ssl://%s:%d", p.cfg.Broker, p.cfg.Port)
	}
	return fmt.Sprintf("tcp://%s:%d", p.cfg.Broker, p.cfg.Port)
}

// IsRunning returns whether the publisher is connected.
func (p *Publisher) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Dropped counts messages dropped on a full queue.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Start connects to the broker and starts the publish worker.
func (p *Publisher) Start() error {
	if p.IsRunning() {
		return nil
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(p.Address())
	if p.cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.SetClientID(p.cfg.ClientID)
	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		p.subscribeWrites(c)
	})

	client := pahomqtt.NewClient(opts)
	p.log.Info().Str("broker", p.Address()).Msg("connecting to MQTT broker")

	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return errors.New("mqtt sink: connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt sink: connect %s: %w", p.Address(), err)
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		client.Disconnect(100)
		return nil
	}
	p.client = client
	p.running = true
	p.stopChan = make(chan struct{})
	p.mu.Unlock()

	p.wg.Add(1)
	go p.worker(client)

	return nil
}

// Stop drains nothing: queued messages are discarded.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	client := p.client
	p.client = nil
	stop := p.stopChan
	p.mu.Unlock()

	close(stop)
	p.wg.Wait()

	client.Disconnect(500)
	p.log.Info().Str("broker", p.Address()).Msg("disconnected from MQTT broker")
}

// Handler returns the event-bus subscriber feeding the publisher.
func (p *Publisher) Handler() event.Handler {
	return func(e event.Event) {
		if !p.IsRunning() {
			return
		}
		m, ok := buildMessage(p.cfg.RootTopic, e)
		if !ok {
			return
		}
		select {
		case p.queue <- m:
		default:
			p.dropped.Add(1)
		}
	}
}

func (p *Publisher) worker(client pahomqtt.Client) {
	defer p.wg.Done()

	for {
		p.mu.RLock()
		stop := p.stopChan
		p.mu.RUnlock()

		select {
		case <-stop:
			return
		case m := <-p.queue:
			token := client.Publish(m.topic, 1, m.retained, m.payload)
			if !token.WaitTimeout(2 * time.Second) {
				p.log.Debug().Str("topic", m.topic).Msg("publish timeout")
				continue
			}
			if err := token.Error(); err != nil {
				p.log.Debug().Err(err).Str("topic", m.topic).Msg("publish failed")
			}
		}
	}
}

// ---- write-back ----

func (p *Publisher) subscribeWrites(c pahomqtt.Client) {
	p.mu.RLock()
	enabled := p.writer != nil
	p.mu.RUnlock()
	if !enabled {
		return
	}

	topic := p.cfg.RootTopic + "/unit/+/write"
	token := c.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		p.handleWrite(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(2*time.Second) || token.Error() != nil {
		p.log.Warn().Err(token.Error()).Str("topic", topic).Msg("subscribe failed")
		return
	}
	p.log.Info().Str("topic", topic).Msg("accepting writes")
}

// handleWrite submits one write request. Errors are logged only.
func (p *Publisher) handleWrite(topic string, payload []byte) {
	p.mu.RLock()
	w := p.writer
	p.mu.RUnlock()
	if w == nil {
		return
	}

	unit, ok := parseWriteTopic(p.cfg.RootTopic, topic)
	if !ok {
		p.log.Debug().Str("topic", topic).Msg("ignoring write on unexpected topic")
		return
	}

	req, err := decodeWrite(payload)
	if err != nil {
		p.log.Warn().Err(err).Uint8("unit", unit).Msg("write rejected")
		return
	}

	if len(req.Values) > 0 {
		err = w.SubmitMulti(unit, req.Values)
	} else {
		var queued bool
		queued, err = w.SubmitSingle(unit, *req.Address, *req.Value)
		if err == nil && !queued {
			p.log.Debug().Uint8("unit", unit).Int("addr", *req.Address).Msg("write outside writable span ignored")
		}
	}
	if err != nil {
		p.log.Warn().Err(err).Uint8("unit", unit).Msg("write rejected")
	}
}
