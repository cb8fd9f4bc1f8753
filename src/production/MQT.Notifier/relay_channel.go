package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	clock "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Clock"
	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
)

// RelayConfig configures the push relay HTTP client
type RelayConfig struct {
	URL        string
	Token      string
	Timeout    time.Duration
	RetryCount int
}

// relayMessage is one entry of the relay's batch send body
type relayMessage struct {
	To       string            `json:"to"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Sound    string            `json:"sound"`
	Priority string            `json:"priority"`
}

type relayTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details"`
}

type relayResponse struct {
	Data   []relayTicket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

const relayDeviceNotRegistered = "DeviceNotRegistered"

// RelayChannel delivers to platform push tokens through an Expo style
// push relay. Subscriptions without web push keys go here.
type RelayChannel struct {
	url            string
	httpClient     *resty.Client
	circuitBreaker *CircuitBreaker
}

func NewRelayChannel(cfg RelayConfig, clk clock.Clock) *RelayChannel {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "sensor-ingestor")

	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	return &RelayChannel{
		url:            cfg.URL,
		httpClient:     client,
		circuitBreaker: NewCircuitBreaker(5, 30*time.Second, clk),
	}
}

func (c *RelayChannel) Name() string { return "relay" }

func (c *RelayChannel) Supports(sub mqtmodels.Subscription) bool {
	return !sub.IsWebPush() && sub.Endpoint != ""
}

// CircuitBreakerStatus returns the breaker state for monitoring
func (c *RelayChannel) CircuitBreakerStatus() map[string]interface{} {
	return c.circuitBreaker.Status()
}

func (c *RelayChannel) Send(ctx context.Context, sub mqtmodels.Subscription, msg Message) error {
	if !c.circuitBreaker.Allow() {
		return ErrCircuitOpen
	}

	body := []relayMessage{{
		To:       sub.Endpoint,
		Title:    msg.Title,
		Body:     msg.Body,
		Data:     msg.Data,
		Sound:    "default",
		Priority: "high",
	}}

	var response relayResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&response).
		SetError(&response).
		Post(c.url)
	if err != nil {
		c.circuitBreaker.OnFailure()
		return fmt.Errorf("push relay request failed: %w", err)
	}

	// only 5xx says the relay itself is unhealthy
	if resp.StatusCode() >= http.StatusInternalServerError {
		c.circuitBreaker.OnFailure()
	} else {
		c.circuitBreaker.OnSuccess()
	}

	if resp.IsError() {
		if len(response.Errors) > 0 {
			return fmt.Errorf("push relay returned status %d: %s", resp.StatusCode(), response.Errors[0].Message)
		}
		return fmt.Errorf("push relay returned status %d", resp.StatusCode())
	}

	if len(response.Data) == 0 {
		return fmt.Errorf("push relay returned no ticket")
	}

	ticket := response.Data[0]
	if ticket.Status == "ok" {
		return nil
	}
	if ticket.Details.Error == relayDeviceNotRegistered {
		return fmt.Errorf("%w: %s", ErrSubscriptionGone, ticket.Message)
	}
	return fmt.Errorf("push relay rejected message: %s", ticket.Message)
}
