package server

import (
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/alejzeis/airhockey-relay/common"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Represents one of the many clients connected to the relay server. The room
// back-reference is an explicit field maintained at admission/disconnect time,
// never inferred from channel membership.
type relayClient struct {
	id     string
	name   string
	roomID string

	connection common.MessageConnection
	send       chan []byte
}

// sendEvent encodes and enqueues an outbound event. Delivery is
// fire-and-forget: a full buffer drops the frame instead of blocking the
// relay.
func (client *relayClient) sendEvent(event string, payload interface{}) {
	data, err := common.EncodeEvent(event, payload)
	if err != nil {
		log.WithError(err).WithField("event", event).Error("Failed to encode outbound event")
		return
	}

	select {
	case client.send <- data:
	default:
		log.WithFields(log.Fields{
			"connection": client.id,
			"event":      event,
		}).Warn("Outbound buffer full, dropping event")
	}
}

// writePump drains the send channel onto the websocket, the sole writer for
// this connection. Exits when the channel is closed on disconnect.
func (client *relayClient) writePump() {
	for data := range client.send {
		if err := client.connection.WriteMessage(data); err != nil {
			// The read loop will observe the broken socket and trigger
			// the disconnect handling
			log.WithError(err).WithField("connection", client.id).Debug("Failed to write to connection")
			return
		}
	}
	_ = client.connection.Close()
}

// relayServer pairs connections into rooms and forwards gameplay events
// between room occupants. One mutex serializes every room-state mutation,
// standing in for the single event loop the design assumes; no handler blocks
// while holding it.
type relayServer struct {
	config *Config

	mutex       sync.Mutex
	connections map[string]*relayClient
	store       *RoomStore
	matchmaker  *Matchmaker
	countdowns  *countdownScheduler
}

func newRelayServer(config *Config, idGenerator RoomIDGenerator) *relayServer {
	store := NewRoomStore(idGenerator)
	return &relayServer{
		config:      config,
		connections: make(map[string]*relayClient),
		store:       store,
		matchmaker:  NewMatchmaker(store, config.Matchmaking),
		countdowns:  newCountdownScheduler(),
	}
}

// registerNewConnection serves a freshly upgraded connection, blocking until
// it disconnects. Exactly one teardown pass runs per connection.
func (relay *relayServer) registerNewConnection(connection common.MessageConnection) {
	client := &relayClient{
		id:         uuid.New().String(),
		connection: connection,
		send:       make(chan []byte, 64),
	}

	relay.mutex.Lock()
	relay.connections[client.id] = client
	relay.mutex.Unlock()

	log.WithFields(log.Fields{
		"connection": client.id,
		"address":    connection.RemoteAddr().String(),
	}).Info("New connection")

	go client.writePump()

	for {
		data, err := connection.ReadMessage()
		if err != nil {
			break
		}
		relay.dispatch(client, data)
	}

	relay.disconnect(client)
}

// dispatch routes one inbound frame to its handler. Malformed frames are
// dropped without crashing and without a client notification.
func (relay *relayServer) dispatch(client *relayClient, frame []byte) {
	envelope, err := common.DecodeEnvelope(frame)
	if err != nil {
		log.WithError(err).WithField("connection", client.id).Debug("Dropping malformed frame")
		return
	}

	switch envelope.Event {
	case common.EventPingRequest:
		relay.onPingRequest(client, envelope.Data)
	case common.EventCreateRoom:
		relay.onCreateRoom(client, envelope.Data)
	case common.EventJoinRoom:
		relay.onJoinRoom(client, envelope.Data)
	case common.EventCheckPlayer:
		relay.onCheckPlayer(client, envelope.Data)
	case common.EventPlayerReady:
		relay.onPlayerReady(client, envelope.Data)
	case common.EventMovePaddle:
		relay.onMovePaddle(client, envelope.Data)
	case common.EventUpdatePuck:
		relay.onUpdatePuck(client, envelope.Data)
	case common.EventUpdateScore:
		relay.onUpdateScore(client, envelope.Data)
	case common.EventGoalScored:
		relay.onGoalScored(client, envelope.Data)
	case common.EventRequestInitialState:
		relay.onRequestInitialState(client, envelope.Data)
	case common.EventSendInitialState:
		relay.onSendInitialState(client, envelope.Data)
	default:
		log.WithFields(log.Fields{
			"connection": client.id,
			"event":      envelope.Event,
		}).Debug("Dropping unknown event")
	}
}

// Echoed back to the sender only, never to the opponent
func (relay *relayServer) onPingRequest(client *relayClient, data json.RawMessage) {
	var request common.PingRequest
	if err := json.Unmarshal(data, &request); err != nil {
		return
	}
	client.sendEvent(common.EventPongResponse, common.PongResponse{ClientTime: request.ClientTime})
}

func (relay *relayServer) onCreateRoom(client *relayClient, data json.RawMessage) {
	var request common.CreateRoomRequest
	if err := json.Unmarshal(data, &request); err != nil || request.PlayerName == "" {
		return
	}

	relay.mutex.Lock()
	defer relay.mutex.Unlock()

	if client.roomID != "" {
		client.sendEvent(common.EventErrorMessage, common.ErrorMessage{Reason: "already in a room"})
		return
	}

	admission, err := relay.matchmaker.CreateOrJoin(request.RoomID, client.id, request.PlayerName)
	if err != nil {
		client.sendEvent(common.EventErrorMessage, common.ErrorMessage{Reason: err.Error()})
		return
	}

	relay.admit(client, request.PlayerName, admission)
}

func (relay *relayServer) onJoinRoom(client *relayClient, data json.RawMessage) {
	var request common.JoinRoomRequest
	if err := json.Unmarshal(data, &request); err != nil || request.PlayerName == "" || request.RoomID == "" {
		return
	}

	relay.mutex.Lock()
	defer relay.mutex.Unlock()

	if client.roomID != "" {
		client.sendEvent(common.EventErrorMessage, common.ErrorMessage{Reason: "already in a room"})
		return
	}

	admission, err := relay.matchmaker.JoinExisting(request.RoomID, client.id, request.PlayerName)
	if err != nil {
		client.sendEvent(common.EventErrorMessage, common.ErrorMessage{Reason: err.Error()})
		return
	}

	relay.admit(client, request.PlayerName, admission)
}

// admit finishes a successful matchmaking request: updates the connection
// entry, confirms the assignment, and on the second admission notifies both
// occupants and asks the veteran occupant for its state snapshot so it can be
// handed to the newcomer.
func (relay *relayServer) admit(client *relayClient, playerName string, admission Admission) {
	room := admission.Room
	client.name = playerName
	client.roomID = room.ID

	if admission.Created {
		client.sendEvent(common.EventRoomCreated, common.RoomCreated{RoomID: room.ID})
	}

	opponent := room.Opponent(client.id)
	opponentName := ""
	if opponent != nil {
		opponentName = opponent.Name
	}
	client.sendEvent(common.EventAssignPlayer, common.AssignPlayer{
		Slot:         admission.Slot.Slot,
		PlayerName:   playerName,
		OpponentName: opponentName,
	})

	log.WithFields(log.Fields{
		"room":    room.ID,
		"player":  playerName,
		"slot":    admission.Slot.Slot,
		"created": admission.Created,
	}).Info("Player admitted to room")

	if room.OccupiedSlots() == 2 {
		relay.broadcastToRoom(room, common.EventPlayerJoined, common.PlayerList{
			RoomID:  room.ID,
			Players: room.PlayerInfos(),
		})
		if opponent != nil {
			relay.sendToConnection(opponent.ConnectionID, common.EventProvideInitialState, common.RoomRef{RoomID: room.ID})
		}
	}
}

// Re-emits the caller's slot assignment, used by clients re-rendering after
// a scene change
func (relay *relayServer) onCheckPlayer(client *relayClient, data json.RawMessage) {
	var request common.RoomRef
	if err := json.Unmarshal(data, &request); err != nil {
		return
	}

	relay.mutex.Lock()
	defer relay.mutex.Unlock()

	room, slot := relay.gameplayContext(client, request.RoomID)
	if slot == nil {
		return
	}

	opponentName := ""
	if opponent := room.Opponent(client.id); opponent != nil {
		opponentName = opponent.Name
	}
	client.sendEvent(common.EventAssignPlayer, common.AssignPlayer{
		Slot:         slot.Slot,
		PlayerName:   slot.Name,
		OpponentName: opponentName,
	})
}

func (relay *relayServer) onPlayerReady(client *relayClient, data json.RawMessage) {
	var request common.RoomRef
	if err := json.Unmarshal(data, &request); err != nil {
		return
	}

	relay.mutex.Lock()
	defer relay.mutex.Unlock()

	room, slot := relay.gameplayContext(client, request.RoomID)
	if slot == nil || room.Phase != PhaseWaitingForReady {
		return
	}
	if slot.Ready {
		// Duplicate signal from the same connection, must not double-count
		return
	}
	slot.Ready = true

	log.WithFields(log.Fields{
		"room":   room.ID,
		"player": slot.Name,
		"ready":  room.ReadyCount(),
	}).Info("Player ready")

	if room.ReadyCount() == 2 {
		room.Phase = PhaseCountdown
		seconds := relay.config.CountdownSeconds
		relay.broadcastToRoom(room, common.EventStartCountdown, common.CountdownStart{Seconds: seconds})

		roomID := room.ID
		relay.countdowns.Schedule(roomID, time.Duration(seconds)*time.Second, func() {
			relay.beginGame(roomID)
		})

		log.WithFields(log.Fields{
			"room":    roomID,
			"seconds": seconds,
		}).Info("Countdown started")
	}
}

// beginGame runs when a room's countdown elapses. The countdown may have been
// cancelled right as the timer fired, so room state is re-validated under the
// mutex: the start signal must never reach a room that lost an occupant.
func (relay *relayServer) beginGame(roomID string) {
	relay.mutex.Lock()
	defer relay.mutex.Unlock()

	room := relay.store.Get(roomID)
	if room == nil || room.Phase != PhaseCountdown || room.OccupiedSlots() != 2 {
		return
	}

	room.Phase = PhaseInProgress
	relay.broadcastToRoom(room, common.EventStartGame, nil)
	log.WithField("room", roomID).Info("Game started")
}

func (relay *relayServer) onMovePaddle(client *relayClient, data json.RawMessage) {
	var request common.PaddleMove
	if err := json.Unmarshal(data, &request); err != nil {
		return
	}

	relay.mutex.Lock()
	defer relay.mutex.Unlock()

	room, slot := relay.gameplayContext(client, request.RoomID)
	if slot == nil {
		return
	}

	opponent := room.Opponent(client.id)
	if opponent == nil {
		return
	}
	relay.sendToConnection(opponent.ConnectionID, common.EventUpdatePaddle, common.PaddleSync{
		PlayerID: client.id,
		Slot:     slot.Slot,
		PaddleX:  relay.clampPaddleX(slot.Slot, request.PaddleX),
		PaddleY:  request.PaddleY,
	})
}

// clampPaddleX confines a paddle to its owner's half of the field. Slot 0 may
// not cross right of the midline, slot 1 not left of it; Y is unconstrained.
// Clamping an already-clamped value yields the same value.
func (relay *relayServer) clampPaddleX(slot int, x float64) float64 {
	if slot == 0 {
		return math.Min(x, relay.config.Midline-relay.config.PaddleHalfWidth)
	}
	return math.Max(x, relay.config.Midline+relay.config.PaddleHalfWidth)
}

func (relay *relayServer) onUpdatePuck(client *relayClient, data json.RawMessage) {
	var request common.PuckUpdate
	if err := json.Unmarshal(data, &request); err != nil {
		return
	}

	relay.mutex.Lock()
	defer relay.mutex.Unlock()

	room, slot := relay.gameplayContext(client, request.RoomID)
	if slot == nil {
		return
	}

	// Cache the latest authoritative state for late-join hand-off; the relay
	// performs no physics validation
	room.Puck = request.Puck

	if opponent := room.Opponent(client.id); opponent != nil {
		relay.sendToConnection(opponent.ConnectionID, common.EventPuckSync, common.PuckSync{
			PuckState:       request.Puck,
			ServerTimestamp: time.Now().UnixMilli(),
		})
	}
}

func (relay *relayServer) onUpdateScore(client *relayClient, data json.RawMessage) {
	var request common.ScoreUpdate
	if err := json.Unmarshal(data, &request); err != nil {
		return
	}

	relay.mutex.Lock()
	defer relay.mutex.Unlock()

	room, slot := relay.gameplayContext(client, request.RoomID)
	if slot == nil {
		return
	}

	// Replaced verbatim, no monotonicity check
	room.Score1 = request.Score1
	room.Score2 = request.Score2

	relay.broadcastToRoom(room, common.EventScoreSync, common.ScoreSync{
		Score1: request.Score1,
		Score2: request.Score2,
	})
}

func (relay *relayServer) onGoalScored(client *relayClient, data json.RawMessage) {
	relay.forwardToOpponent(client, data, common.EventUpdateGoalState)
}

func (relay *relayServer) onRequestInitialState(client *relayClient, data json.RawMessage) {
	relay.forwardToOpponent(client, data, common.EventProvideInitialState)
}

func (relay *relayServer) onSendInitialState(client *relayClient, data json.RawMessage) {
	relay.forwardToOpponent(client, data, common.EventReceiveInitialState)
}

// forwardToOpponent relays a passthrough event to the other room occupant
// with the payload untouched
func (relay *relayServer) forwardToOpponent(client *relayClient, data json.RawMessage, outEvent string) {
	var ref common.RoomRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return
	}

	relay.mutex.Lock()
	defer relay.mutex.Unlock()

	room, slot := relay.gameplayContext(client, ref.RoomID)
	if slot == nil {
		return
	}

	if opponent := room.Opponent(client.id); opponent != nil {
		relay.sendToConnection(opponent.ConnectionID, outEvent, data)
	}
}

// gameplayContext resolves a gameplay event to its room and the sender's
// slot. An unknown room is a silent no-op: it may have just been torn down by
// a disconnect racing an in-flight event, which is expected and best-effort.
func (relay *relayServer) gameplayContext(client *relayClient, roomID string) (*Room, *PlayerSlot) {
	room := relay.store.Get(roomID)
	if room == nil {
		return nil, nil
	}
	slot := room.SlotFor(client.id)
	if slot == nil {
		return nil, nil
	}
	return room, slot
}

// disconnect routes every connection teardown, graceful or abrupt, through
// one path: deregister, vacate the slot, cancel any pending countdown, then
// either notify the remaining occupant or delete the empty room before any
// matchmaking request can observe it.
func (relay *relayServer) disconnect(client *relayClient) {
	relay.mutex.Lock()

	delete(relay.connections, client.id)

	if client.roomID != "" {
		if room := relay.store.Get(client.roomID); room != nil {
			if room.removePlayer(client.id) != nil {
				relay.countdowns.Cancel(room.ID)

				if room.OccupiedSlots() == 0 {
					relay.store.Delete(room.ID)
					log.WithField("room", room.ID).Info("Deleted empty room")
				} else {
					room.Phase = PhaseWaitingForPlayer
					room.ResetReady()
					relay.broadcastToRoom(room, common.EventPlayerLeft, common.PlayerList{
						RoomID:  room.ID,
						Players: room.PlayerInfos(),
					})
					log.WithFields(log.Fields{
						"room":   room.ID,
						"player": client.name,
					}).Info("Player left room")
				}
			}
		}
		client.roomID = ""
	}

	relay.mutex.Unlock()

	close(client.send)
	// writePump closes the socket after draining, but it may have already
	// exited on a write error without doing so. Close is safe to repeat.
	_ = client.connection.Close()
	log.WithField("connection", client.id).Info("Connection closed")
}

// sendToConnection delivers an event to a connection by id, a no-op when the
// connection is already gone
func (relay *relayServer) sendToConnection(connectionID, event string, payload interface{}) {
	if target, exists := relay.connections[connectionID]; exists {
		target.sendEvent(event, payload)
	}
}

// broadcastToRoom delivers an event to every occupant of a room
func (relay *relayServer) broadcastToRoom(room *Room, event string, payload interface{}) {
	for _, slot := range room.Players() {
		relay.sendToConnection(slot.ConnectionID, event, payload)
	}
}

// stats snapshots the relay state for the /stats REST method
func (relay *relayServer) stats() common.StatsResponse {
	relay.mutex.Lock()
	defer relay.mutex.Unlock()

	return common.StatsResponse{
		Rooms:        relay.store.Count(),
		Connections:  len(relay.connections),
		RoomsByPhase: relay.store.CountByPhase(),
	}
}
