package common

import (
	"encoding/json"
	"errors"
)

// SoftwareName is the name of this software
const SoftwareName = "airhockey-relay"

// SoftwareVersion is the version of this software
const SoftwareVersion = "v1.0.0"

// APIVersion is the version of the REST API implemented by the control server
const APIVersion uint = 1

// Client to server event names.
const (
	EventCreateRoom          = "createRoom"
	EventJoinRoom            = "joinRoom"
	EventCheckPlayer         = "checkPlayer"
	EventPlayerReady         = "playerReady"
	EventMovePaddle          = "movePaddle"
	EventUpdatePuck          = "updatePuck"
	EventUpdateScore         = "updateScore"
	EventGoalScored          = "goalScored"
	EventRequestInitialState = "requestInitialState"
	EventSendInitialState    = "sendInitialState"
	EventPingRequest         = "pingRequest"
)

// Server to client event names.
const (
	EventRoomCreated         = "roomCreated"
	EventAssignPlayer        = "assignPlayer"
	EventPlayerJoined        = "playerJoined"
	EventErrorMessage        = "errorMessage"
	EventStartCountdown      = "startCountdown"
	EventStartGame           = "startGame"
	EventUpdatePaddle        = "updatePaddle"
	EventPuckSync            = "puckSync"
	EventScoreSync           = "scoreSync"
	EventUpdateGoalState     = "updateGoalState"
	EventProvideInitialState = "provideInitialState"
	EventReceiveInitialState = "receiveInitialState"
	EventPlayerLeft          = "playerLeft"
	EventPongResponse        = "pongResponse"
)

// ErrMissingEvent is returned when a frame carries no event name
var ErrMissingEvent = errors.New("frame is missing an event name")

// Envelope is the wire format for every message on a relay connection: an
// event name plus an event-specific JSON payload. The payload is kept raw so
// passthrough events can be forwarded without re-encoding their contents.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// DecodeEnvelope parses a raw frame into an Envelope
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return Envelope{}, err
	}
	if envelope.Event == "" {
		return Envelope{}, ErrMissingEvent
	}
	return envelope, nil
}

// EncodeEvent builds a raw frame from an event name and its payload
func EncodeEvent(event string, payload interface{}) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = encoded
	}

	return json.Marshal(Envelope{Event: event, Data: data})
}

// CreateRoomRequest asks for admission to the room with the given id, or for
// a brand new room when the id is empty (the server generates one). A slot
// preference is accepted for wire compatibility but ignored: sides are fixed
// by admission order, the first-admitted player always takes slot 0.
type CreateRoomRequest struct {
	RoomID         string `json:"roomId,omitempty"`
	PlayerName     string `json:"playerName"`
	SlotPreference int    `json:"slotPreference,omitempty"`
}

// JoinRoomRequest asks for admission to an existing room by its code
type JoinRoomRequest struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
}

// RoomRef names the room an event applies to
type RoomRef struct {
	RoomID string `json:"roomId"`
}

// PaddleMove is a client reporting its own paddle position
type PaddleMove struct {
	RoomID  string  `json:"roomId"`
	PaddleX float64 `json:"paddleX"`
	PaddleY float64 `json:"paddleY"`
}

// PaddleSync is the server forwarding a (side-clamped) paddle position to the
// opponent
type PaddleSync struct {
	PlayerID string  `json:"playerId"`
	Slot     int     `json:"slot"`
	PaddleX  float64 `json:"paddleX"`
	PaddleY  float64 `json:"paddleY"`
}

// PuckState is the last known puck position and velocity. The server never
// simulates these values, it only stores and republishes them.
type PuckState struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
}

// PuckUpdate is the authoritative client pushing a new puck state
type PuckUpdate struct {
	RoomID string    `json:"roomId"`
	Puck   PuckState `json:"puck"`
}

// PuckSync is the server forwarding a puck state to the opponent, stamped
// with the server receipt time (unix millis) for latency diagnostics
type PuckSync struct {
	PuckState
	ServerTimestamp int64 `json:"serverTimestamp"`
}

// ScoreUpdate replaces the room score verbatim, no monotonicity check
type ScoreUpdate struct {
	RoomID string `json:"roomId"`
	Score1 int    `json:"score1"`
	Score2 int    `json:"score2"`
}

// ScoreSync is the server broadcasting the room score to both occupants
type ScoreSync struct {
	Score1 int `json:"score1"`
	Score2 int `json:"score2"`
}

// InitialState carries an opaque game-state snapshot for the late-join
// hand-off. The state is never interpreted by the server.
type InitialState struct {
	RoomID string          `json:"roomId"`
	State  json.RawMessage `json:"state"`
}

// PingRequest and PongResponse implement the round-trip-time probe. The
// client time is echoed back untouched and never reaches the opponent.
type PingRequest struct {
	ClientTime int64 `json:"clientTime"`
}

type PongResponse struct {
	ClientTime int64 `json:"clientTime"`
}

// RoomCreated confirms room creation to the first-admitted player
type RoomCreated struct {
	RoomID string `json:"roomId"`
}

// AssignPlayer tells a connection which slot it occupies. Slot 0 is the left
// side, slot 1 the right side.
type AssignPlayer struct {
	Slot         int    `json:"slot"`
	PlayerName   string `json:"playerName"`
	OpponentName string `json:"opponentName,omitempty"`
}

// PlayerInfo is one occupant in a players list
type PlayerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slot int    `json:"slot"`
}

// PlayerList is broadcast whenever room membership changes
type PlayerList struct {
	RoomID  string       `json:"roomId"`
	Players []PlayerInfo `json:"players"`
}

// ErrorMessage reports a non-fatal failure to the requesting client
type ErrorMessage struct {
	Reason string `json:"reason"`
}

// CountdownStart announces the fixed pre-game delay to both occupants
type CountdownStart struct {
	Seconds int `json:"seconds"`
}

// InfoResponse is the JSON response to the /info REST method
type InfoResponse struct {
	Software string `json:"software"`
	Version  string `json:"version"`
	API      uint   `json:"apiVersion"`
}

// StatsResponse is the JSON response to the /stats REST method
type StatsResponse struct {
	Rooms        int            `json:"rooms"`
	Connections  int            `json:"connections"`
	RoomsByPhase map[string]int `json:"roomsByPhase"`
}
