package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	logger "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Logger"
)

type published struct {
	identifier string
	payload    []byte
}

type fakePublisher struct {
	sent []published
	err  error
}

func (p *fakePublisher) PublishSample(identifier string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{identifier, payload})
	return nil
}

func passThrough(c *gin.Context) { c.Next() }

func newSimulateRouter(pub SamplePublisher, intn func(int) int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	c := NewSimulateController(pub, logger.NewNop())
	if intn != nil {
		c.intn = intn
	}
	c.RegisterRoutes(r, passThrough)
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSimulate_PublishesEncodedFrame(t *testing.T) {
	pub := &fakePublisher{}
	r := newSimulateRouter(pub, nil)

	w := postJSON(r, "/internal/simulate",
		`{"identifier":"SN-1","status":"triggered","batteryVoltageMillivolts":4200,"rssiMagnitude":80}`)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, pub.sent, 1)
	assert.Equal(t, "SN-1", pub.sent[0].identifier)
	assert.Equal(t, []byte{0x00, 0x10, 0x68, 0x50}, pub.sent[0].payload)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "00106850", resp["payload"])
}

func TestSimulate_ActiveStatus(t *testing.T) {
	pub := &fakePublisher{}
	r := newSimulateRouter(pub, nil)

	w := postJSON(r, "/internal/simulate",
		`{"identifier":"SN-2","status":"active","batteryVoltageMillivolts":0,"rssiMagnitude":0}`)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, pub.sent[0].payload)
}

func TestSimulate_JitterStaysInBounds(t *testing.T) {
	pub := &fakePublisher{}
	// always pick the top of the range
	r := newSimulateRouter(pub, func(n int) int { return n - 1 })

	w := postJSON(r, "/internal/simulate",
		`{"identifier":"SN-3","status":"active","batteryVoltageMillivolts":3700,"rssiMagnitude":60,"jitter":true}`)

	require.Equal(t, http.StatusAccepted, w.Code)
	// 3750 mV, 63
	assert.Equal(t, []byte{0x01, 0x0E, 0xA6, 0x3F}, pub.sent[0].payload)
}

func TestSimulate_RejectsInvalidBodies(t *testing.T) {
	bodies := map[string]string{
		"missing identifier": `{"status":"active","batteryVoltageMillivolts":3700,"rssiMagnitude":60}`,
		"bad status":         `{"identifier":"a","status":"asleep","batteryVoltageMillivolts":3700,"rssiMagnitude":60}`,
		"missing voltage":    `{"identifier":"a","status":"active","rssiMagnitude":60}`,
		"voltage too large":  `{"identifier":"a","status":"active","batteryVoltageMillivolts":70000,"rssiMagnitude":60}`,
		"rssi too large":     `{"identifier":"a","status":"active","batteryVoltageMillivolts":3700,"rssiMagnitude":300}`,
		"not json":           `nope`,
		"topic separator":    `{"identifier":"a/b","status":"active","batteryVoltageMillivolts":3700,"rssiMagnitude":60}`,
		"single wildcard":    `{"identifier":"a+","status":"active","batteryVoltageMillivolts":3700,"rssiMagnitude":60}`,
		"multi wildcard":     `{"identifier":"#","status":"active","batteryVoltageMillivolts":3700,"rssiMagnitude":60}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			pub := &fakePublisher{}
			w := postJSON(newSimulateRouter(pub, nil), "/internal/simulate", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, pub.sent)
		})
	}
}

func TestSimulate_PublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("mqtt client not connected")}
	w := postJSON(newSimulateRouter(pub, nil), "/internal/simulate",
		`{"identifier":"SN-1","status":"active","batteryVoltageMillivolts":3700,"rssiMagnitude":60}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type fakeReporter struct {
	healthy bool
}

func (f fakeReporter) GetHealthStatus(context.Context) (map[string]interface{}, bool) {
	status := "ok"
	if !f.healthy {
		status = "degraded"
	}
	return map[string]interface{}{"status": status}, f.healthy
}

func newHealthRouter(healthy bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	c := NewHealthController(fakeReporter{healthy: healthy})
	c.AddDetail("relay_circuit_breaker", func() interface{} {
		return map[string]interface{}{"state": "closed"}
	})
	c.RegisterRoutes(r)
	return r
}

func TestHealthLive(t *testing.T) {
	w := httptest.NewRecorder()
	newHealthRouter(false).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthReady(t *testing.T) {
	w := httptest.NewRecorder()
	newHealthRouter(true).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","relay_circuit_breaker":{"state":"closed"}}`, w.Body.String())

	w = httptest.NewRecorder()
	newHealthRouter(false).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
