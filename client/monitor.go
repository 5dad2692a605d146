package client

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/alejzeis/airhockey-relay/common"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

// RunMonitor is the main method for running the monitor client: it fetches
// /info once, then keeps polling /stats and measuring websocket round-trip
// latency until the process is interrupted.
func RunMonitor(serverURL string) {
	monitor := newMonitor(serverURL)

	if !monitor.fetchInfo() {
		return
	}

	probe, err := monitor.provider.DialForConnection(monitor.websocketURL())
	if err != nil {
		log.WithError(err).WithField("url", monitor.websocketURL()).Error("Failed to open latency probe connection")
		return
	}
	defer probe.CloseWithMessage("monitor shutting down")

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		monitor.checkStats()
		monitor.probeLatency(probe)
	}
}

type monitor struct {
	rest      *resty.Client
	provider  common.MessageConnectionProvider
	serverURL string
}

func newMonitor(serverURL string) *monitor {
	return &monitor{
		rest:      resty.New(),
		provider:  new(common.RelayMessageConnectionProvider),
		serverURL: strings.TrimSuffix(serverURL, "/"),
	}
}

func (m *monitor) fetchInfo() bool {
	url := m.serverURL + "/info"
	response, err := m.rest.R().Get(url)
	if err != nil {
		log.WithField("url", url).WithError(err).Error("Failed to fetch server info.")
		return false
	} else if response.StatusCode() != http.StatusOK {
		log.WithFields(log.Fields{
			"url":    url,
			"status": response.StatusCode(),
			"body":   response.Body(),
		}).Error("Failed to fetch server info")
		return false
	}

	var info common.InfoResponse
	if decodeErr := json.Unmarshal(response.Body(), &info); decodeErr != nil {
		log.WithField("url", url).WithError(decodeErr).Error("Failed to decode JSON response for server info.")
		return false
	}

	log.WithFields(log.Fields{
		"software": info.Software,
		"version":  info.Version,
		"api":      info.API,
	}).Info("Connected to relay server")
	return true
}

func (m *monitor) checkStats() {
	url := m.serverURL + "/stats"
	response, err := m.rest.R().Get(url)
	if err != nil {
		log.WithField("url", url).WithError(err).Warn("Failed to fetch stats.")
		return
	} else if response.StatusCode() != http.StatusOK {
		log.WithFields(log.Fields{
			"url":    url,
			"status": response.StatusCode(),
			"body":   response.Body(),
		}).Warn("Failed to fetch stats")
		return
	}

	var stats common.StatsResponse
	if decodeErr := json.Unmarshal(response.Body(), &stats); decodeErr != nil {
		log.WithFields(log.Fields{
			"url":  url,
			"body": response.String(),
		}).WithError(decodeErr).Error("Failed to decode JSON response while fetching stats.")
		return
	}

	log.WithFields(log.Fields{
		"rooms":       stats.Rooms,
		"connections": stats.Connections,
		"byPhase":     stats.RoomsByPhase,
	}).Info("Relay stats")
}

func (m *monitor) websocketURL() string {
	if strings.HasPrefix(m.serverURL, "https://") {
		return strings.Replace(m.serverURL, "https://", "wss://", 1) + "/ws"
	}
	return strings.Replace(m.serverURL, "http://", "ws://", 1) + "/ws"
}

// probeLatency sends a pingRequest and waits for the echoed pongResponse,
// reporting the round-trip time. The echo never reaches other connections.
func (m *monitor) probeLatency(probe common.MessageConnection) {
	sent := time.Now()
	frame, err := common.EncodeEvent(common.EventPingRequest, common.PingRequest{ClientTime: sent.UnixMilli()})
	if err != nil {
		return
	}

	if writeErr := probe.WriteMessage(frame); writeErr != nil {
		log.WithError(writeErr).Warn("Failed to send latency probe")
		return
	}

	data, readErr := probe.ReadMessage()
	if readErr != nil {
		log.WithError(readErr).Warn("Failed to read latency probe response")
		return
	}

	envelope, decodeErr := common.DecodeEnvelope(data)
	if decodeErr != nil || envelope.Event != common.EventPongResponse {
		log.WithField("event", envelope.Event).Warn("Unexpected frame while waiting for pong")
		return
	}

	log.WithField("rtt", time.Since(sent).String()).Info("Latency probe")
}
