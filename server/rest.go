package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/alejzeis/airhockey-relay/common"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

var infoResponseJSON []byte // Cached bytes of the JSON for the /info response

// StartRelayServer begins serving the websocket relay endpoint and the
// control REST API, called by the main function. Blocks for the lifetime of
// the process.
func StartRelayServer(configFile *ini.File) {
	config := LoadConfig(configFile)
	relay := newRelayServer(config, new(RandomRoomIDGenerator))

	log.WithFields(log.Fields{
		"port":        config.Port,
		"matchmaking": config.Matchmaking,
		"origins":     config.AllowedOrigins,
	}).Info("Starting relay HTTP server...")

	router := buildRouter(relay)
	log.WithError(http.ListenAndServe(":"+strconv.Itoa(config.Port), router)).WithField("port", config.Port).Error("Failed to start listening")
}

// buildRouter wires the REST methods and the websocket endpoint. Split from
// StartRelayServer so tests can mount the router on their own listener.
func buildRouter(relay *relayServer) *mux.Router {
	infoResponseJSON, _ = json.Marshal(common.InfoResponse{
		Software: common.SoftwareName,
		Version:  common.SoftwareVersion,
		API:      common.APIVersion,
	})

	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/info", relay.handleInfo).Methods("GET")
	router.HandleFunc("/stats", relay.handleStats).Methods("GET")
	router.HandleFunc("/ws", relay.handleWebsocket)

	return router
}

// Returns server information such as the software version and REST API version
func (relay *relayServer) handleInfo(w http.ResponseWriter, r *http.Request) {
	relay.writeCORSHeader(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(infoResponseJSON)
}

// Returns live room/connection counts for operational monitoring
func (relay *relayServer) handleStats(w http.ResponseWriter, r *http.Request) {
	data, err := json.Marshal(relay.stats())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		log.WithError(err).Error("Failed to encode response json for /stats")
		return
	}

	relay.writeCORSHeader(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Upgrades the connection and hands it to the relay core. The upgrader
// enforces the same origin allowlist as the REST methods.
func (relay *relayServer) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  2048,
		WriteBufferSize: 2048,
		CheckOrigin: func(r *http.Request) bool {
			return relay.config.OriginAllowed(r.Header.Get("Origin"))
		},
	}

	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).WithField("address", r.RemoteAddr).Warn("Failed to upgrade websocket connection")
		return
	}

	relay.registerNewConnection(common.WrapWebsocket(socket))
}

func (relay *relayServer) writeCORSHeader(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" || !relay.config.OriginAllowed(origin) {
		return
	}
	if len(relay.config.AllowedOrigins) == 0 {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}
}
