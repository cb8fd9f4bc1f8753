package controllers

import (
	"encoding/hex"
	"math/rand/v2"
	"net/http"

	"github.com/gin-gonic/gin"
	logger "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
	telemetry "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Telemetry"
)

const (
	voltageJitter = 50
	rssiJitter    = 3
)

// SamplePublisher puts a raw frame on a device's data topic
type SamplePublisher interface {
	PublishSample(identifier string, payload []byte) error
}

// SimulateRequest describes one synthetic sensor report
type SimulateRequest struct {
	Identifier               string `json:"identifier" binding:"required"`
	Status                   string `json:"status" binding:"required,oneof=active triggered"`
	BatteryVoltageMillivolts *int   `json:"batteryVoltageMillivolts" binding:"required,min=0,max=65535"`
	RSSIMagnitude            *int   `json:"rssiMagnitude" binding:"required,min=0,max=255"`
	Jitter                   bool   `json:"jitter"`
}

// SimulateController injects synthetic telemetry through the broker
type SimulateController struct {
	publisher SamplePublisher
	logger    *logger.Logger
	intn      func(n int) int
}

func NewSimulateController(publisher SamplePublisher, log *logger.Logger) *SimulateController {
	return &SimulateController{
		publisher: publisher,
		logger:    log.WithComponent("simulate"),
		intn:      rand.IntN,
	}
}

// RegisterRoutes mounts the simulation endpoint behind auth
func (c *SimulateController) RegisterRoutes(router gin.IRouter, auth gin.HandlerFunc) {
	router.POST("/internal/simulate", auth, c.Simulate)
}

func (c *SimulateController) Simulate(ctx *gin.Context) {
	var req SimulateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := telemetry.ValidateIdentifier(req.Identifier); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sample := mqtmodels.Sample{
		StatusCode:        0x01,
		VoltageMillivolts: *req.BatteryVoltageMillivolts,
		RSSIMagnitude:     *req.RSSIMagnitude,
	}
	if req.Status == string(mqtmodels.StatusTriggered) {
		sample.StatusCode = mqtmodels.StatusCodeTriggered
	}
	if req.Jitter {
		sample.VoltageMillivolts += c.offset(voltageJitter)
		sample.RSSIMagnitude += c.offset(rssiJitter)
	}

	payload := telemetry.Encode(sample)
	if err := c.publisher.PublishSample(req.Identifier, payload); err != nil {
		c.logger.Logger.Error().Err(err).Str("identifier", req.Identifier).Msg("Failed to publish simulated sample")
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to publish sample"})
		return
	}

	c.logger.Logger.Info().Str("identifier", req.Identifier).Hex("payload", payload).Msg("Published simulated sample")
	ctx.JSON(http.StatusAccepted, gin.H{
		"identifier": req.Identifier,
		"payload":    hex.EncodeToString(payload),
	})
}

// offset returns a value in [-spread, spread]
func (c *SimulateController) offset(spread int) int {
	return c.intn(2*spread+1) - spread
}
