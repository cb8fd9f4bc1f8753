package mqtingestor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	clock "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Clock"
	config "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Config"
	logger "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
	interfaces "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Repository/Interfaces"
	telemetry "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Telemetry"
)

const publishTimeout = 5 * time.Second

// SampleHandler is satisfied by engine.Engine
type SampleHandler interface {
	HandleSample(ctx context.Context, identifier string, sample mqtmodels.Sample) error
}

type Ingestor struct {
	cfg        config.MQTTConfig
	brokerURL  string
	handler    SampleHandler
	queue      *KeyedQueue
	mqttClient mqtt.Client
	clock      clock.Clock
	logger     *logger.Logger
}

func New(cfg *config.IngestorConfig, handler SampleHandler, clk clock.Clock, log *logger.Logger) *Ingestor {
	i := &Ingestor{
		cfg:       cfg.MQTT,
		brokerURL: cfg.GetMQTTBrokerURL(),
		handler:   handler,
		clock:     clk,
		logger:    log.WithComponent("ingestor"),
	}
	i.queue = NewKeyedQueue(cfg.Queue.Shards, cfg.Queue.Depth, i.process, log)
	return i
}

func (i *Ingestor) Start(ctx context.Context) error {
	i.queue.Start(ctx)

	opts := mqtt.NewClientOptions().
		AddBroker(i.brokerURL).
		SetClientID(i.cfg.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(i.cfg.KeepAlive).
		SetPingTimeout(i.cfg.PingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false)

	if i.cfg.BrokerUser != "" {
		opts.SetUsername(i.cfg.BrokerUser)
		opts.SetPassword(i.cfg.BrokerPass)
	}

	if i.cfg.UseTLS {
		tlsCfg, err := i.tlsConfig(i.cfg.CACertPath)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		i.logger.Logger.Error().Err(err).Msg("MQTT connection lost")
	}
	opts.OnConnect = func(c mqtt.Client) {
		topic := i.subscriptionTopic()
		i.logger.Logger.Info().Str("topic", topic).Msg("MQTT connected, subscribing to topic")
		if token := c.Subscribe(topic, 1, i.onMessage); token.Wait() && token.Error() != nil {
			i.logger.Logger.Error().Err(token.Error()).Str("topic", topic).Msg("Failed to subscribe to MQTT topic")
		}
	}

	i.mqttClient = mqtt.NewClient(opts)
	if tk := i.mqttClient.Connect(); tk.Wait() && tk.Error() != nil {
		return tk.Error()
	}

	return nil
}

// Stop disconnects from the broker, then drains the queue
func (i *Ingestor) Stop() {
	if i.mqttClient != nil && i.mqttClient.IsConnected() {
		i.mqttClient.Disconnect(500)
	}
	i.queue.Stop()
}

func (i *Ingestor) IsConnected() bool {
	return i.mqttClient != nil && i.mqttClient.IsConnected()
}

// QueueStats reports pending and dropped samples
func (i *Ingestor) QueueStats() map[string]interface{} {
	return map[string]interface{}{
		"pending": i.queue.Pending(),
		"dropped": i.queue.Dropped(),
	}
}

// PublishSample puts a raw payload on the data topic of identifier, the same
// way a device would.
func (i *Ingestor) PublishSample(identifier string, payload []byte) error {
	if !i.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}
	topic := telemetry.TopicFor(i.cfg.Namespace, identifier)
	token := i.mqttClient.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	return token.Error()
}

func (i *Ingestor) subscriptionTopic() string {
	topic := telemetry.SubscriptionTopic(i.cfg.Namespace)
	if i.cfg.SharedGroup != "" {
		topic = fmt.Sprintf("$share/%s/%s", i.cfg.SharedGroup, topic)
	}
	return topic
}

func (i *Ingestor) onMessage(_ mqtt.Client, m mqtt.Message) {
	i.logger.Logger.Debug().Str("topic", m.Topic()).Hex("payload", m.Payload()).Msg("Received MQTT message")

	identifier, err := telemetry.IdentifierFromTopic(m.Topic(), i.cfg.Namespace)
	if err != nil {
		i.logger.Logger.Warn().Err(err).Str("topic", m.Topic()).Msg("Invalid topic format")
		i.publishError("unknown", "invalid_topic", err.Error())
		return
	}

	sample, err := telemetry.Decode(m.Payload())
	if err != nil {
		i.logger.Logger.Warn().Err(err).Str("identifier", identifier).Msg("Dropping malformed payload")
		i.publishError(identifier, "invalid_payload", err.Error())
		return
	}

	job := Job{Identifier: identifier, Sample: sample, ReceivedAt: i.clock.Now()}
	if err := i.queue.Enqueue(job); err != nil {
		i.logger.Logger.Warn().Err(err).Str("identifier", identifier).Msg("Sample rejected, ingestor stopping")
	}
}

func (i *Ingestor) process(ctx context.Context, job Job) {
	err := i.handler.HandleSample(ctx, job.Identifier, job.Sample)
	if err == nil {
		return
	}
	if errors.Is(err, interfaces.ErrDeviceNotFound) {
		i.publishError(job.Identifier, "device_not_found", fmt.Sprintf("Device %s is not registered", job.Identifier))
		return
	}
	i.logger.Logger.Error().Err(err).Str("identifier", job.Identifier).Msg("Failed to process sample")
}

func (i *Ingestor) tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file")
	}
	cfg.RootCAs = cp
	return cfg, nil
}

// publishError publishes an error message to the error topic for device feedback
func (i *Ingestor) publishError(identifier, errorType, message string) {
	if i.mqttClient == nil || !i.mqttClient.IsConnected() {
		return
	}

	errorPayload := map[string]interface{}{
		"error_type": errorType,
		"message":    message,
		"identifier": identifier,
		"timestamp":  i.clock.Now(),
	}

	payloadJSON, err := json.Marshal(errorPayload)
	if err != nil {
		i.logger.Logger.Error().Err(err).Msg("Failed to marshal error payload")
		return
	}

	errorTopic := fmt.Sprintf("ingestor/errors/%s", identifier)
	token := i.mqttClient.Publish(errorTopic, 1, false, payloadJSON)

	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		i.logger.Logger.Error().Err(token.Error()).Str("topic", errorTopic).Msg("Failed to publish error")
	} else {
		i.logger.Logger.Debug().Str("topic", errorTopic).Str("message", message).Msg("Published error")
	}
}
