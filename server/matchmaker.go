package server

import "errors"

// ErrRoomUnavailable is returned when admission targets a room that is full
// or doesn't exist. Surfaced to the client as an errorMessage event,
// non-fatal: the connection stays open for a retry.
var ErrRoomUnavailable = errors.New("room is full or doesn't exist")

// Admission is the outcome of a successful matchmaking request
type Admission struct {
	Room    *Room
	Slot    *PlayerSlot
	Created bool
}

// Matchmaker assigns an incoming connection either to a newly created room
// (as slot 0) or to an existing room awaiting its second player (as the
// remaining slot). The active mode is fixed per deployment.
type Matchmaker struct {
	store *RoomStore
	mode  MatchmakingMode
}

// NewMatchmaker creates a Matchmaker over the given store
func NewMatchmaker(store *RoomStore, mode MatchmakingMode) *Matchmaker {
	return &Matchmaker{store: store, mode: mode}
}

// CreateOrJoin handles the createRoom operation.
//
// In code mode a supplied room id is joined when that room has exactly one
// occupant, created when absent, and rejected when full. Without an id a
// fresh room with a generated id is created.
//
// In quick mode the id is ignored: the newcomer lands in the oldest room with
// a free slot, or a fresh room when none is waiting.
func (matchmaker *Matchmaker) CreateOrJoin(requestedRoomID, connectionID, playerName string) (Admission, error) {
	if matchmaker.mode == MatchQuick {
		if room := matchmaker.store.FirstJoinable(); room != nil {
			if slot := matchmaker.seat(room, connectionID, playerName); slot != nil {
				return Admission{Room: room, Slot: slot}, nil
			}
		}
		return matchmaker.createAndSeat("", connectionID, playerName)
	}

	if requestedRoomID != "" {
		if room := matchmaker.store.Get(requestedRoomID); room != nil {
			slot := matchmaker.seat(room, connectionID, playerName)
			if slot == nil {
				return Admission{}, ErrRoomUnavailable
			}
			return Admission{Room: room, Slot: slot}, nil
		}
	}
	return matchmaker.createAndSeat(requestedRoomID, connectionID, playerName)
}

// JoinExisting handles the joinRoom operation: strict join-by-code, never
// creates a room
func (matchmaker *Matchmaker) JoinExisting(roomID, connectionID, playerName string) (Admission, error) {
	room := matchmaker.store.Get(roomID)
	if room == nil {
		return Admission{}, ErrRoomUnavailable
	}
	slot := matchmaker.seat(room, connectionID, playerName)
	if slot == nil {
		return Admission{}, ErrRoomUnavailable
	}
	return Admission{Room: room, Slot: slot}, nil
}

func (matchmaker *Matchmaker) createAndSeat(roomID, connectionID, playerName string) (Admission, error) {
	room := matchmaker.store.Create(roomID)
	slot := matchmaker.seat(room, connectionID, playerName)
	return Admission{Room: room, Slot: slot, Created: true}, nil
}

// seat adds the player and advances the room phase when it fills up
func (matchmaker *Matchmaker) seat(room *Room, connectionID, playerName string) *PlayerSlot {
	slot := room.addPlayer(connectionID, playerName)
	if slot == nil {
		return nil
	}
	if room.OccupiedSlots() == 2 && room.Phase == PhaseWaitingForPlayer {
		room.Phase = PhaseWaitingForReady
	}
	return slot
}
