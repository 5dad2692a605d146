package main

import (
	"os"

	"github.com/alejzeis/airhockey-relay/client"
	"github.com/alejzeis/airhockey-relay/common"
	"github.com/alejzeis/airhockey-relay/server"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

func main() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
	log.SetLevel(log.DebugLevel)

	// Environment overrides (PORT etc.) may live in a .env file
	_ = godotenv.Load()

	if len(os.Args) > 1 && os.Args[1] == "-monitor" {
		log.WithFields(log.Fields{
			"software": common.SoftwareName,
			"version":  common.SoftwareVersion,
			"mode":     "monitor",
		}).Info("Starting...")

		serverURL := "http://127.0.0.1:3000"
		if len(os.Args) > 2 {
			serverURL = os.Args[2]
		}
		client.RunMonitor(serverURL)
	} else {
		log.WithFields(log.Fields{
			"software": common.SoftwareName,
			"version":  common.SoftwareVersion,
			"mode":     "server",
		}).Info("Starting...")

		server.StartRelayServer(loadConfig())
	}
}

func loadConfig() *ini.File {
	var configLocation string = "relay.ini"
	if os.Getenv("RELAY_CONFIG") != "" {
		configLocation = os.Getenv("RELAY_CONFIG")
	}

	file, err := ini.Load(configLocation)
	if err != nil {
		log.WithField("config", configLocation).WithError(err).Warn("Failed to load configuration file, continuing with defaults.")
		return ini.Empty()
	}

	return file
}
