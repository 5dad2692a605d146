package server

import (
	"strings"

	"github.com/alejzeis/airhockey-relay/common"

	"github.com/google/uuid"
)

// RoomPhase is the lifecycle state of a room. Transitions are driven by
// admissions, readiness signals, the countdown timer and disconnects.
type RoomPhase string

const (
	PhaseWaitingForPlayer RoomPhase = "waitingForPlayer"
	PhaseWaitingForReady  RoomPhase = "waitingForReady"
	PhaseCountdown        RoomPhase = "countdown"
	PhaseInProgress       RoomPhase = "inProgress"
	PhaseTerminated       RoomPhase = "terminated"
)

// PlayerSlot binds a connection and display name to its fixed side within a
// room. Slot 0 is the left side, slot 1 the right side; the index is assigned
// at join time and never renumbered while the occupant stays connected.
type PlayerSlot struct {
	ConnectionID string
	Name         string
	Slot         int
	Ready        bool
}

// Room represents one two-player game session. The server holds no physics:
// puck and score are caches of the most recent authoritative client updates,
// kept only so state can be handed to a late joiner.
type Room struct {
	ID    string
	Phase RoomPhase

	// Index equals slot number; a nil entry is a free slot
	slots [2]*PlayerSlot

	Puck   common.PuckState
	Score1 int
	Score2 int

	sequence uint64 // creation order, scanned by quick-match
}

// OccupiedSlots returns the number of occupied player slots (0 to 2)
func (room *Room) OccupiedSlots() int {
	count := 0
	for _, slot := range room.slots {
		if slot != nil {
			count++
		}
	}
	return count
}

// Players returns the occupied slots in slot order
func (room *Room) Players() []*PlayerSlot {
	players := make([]*PlayerSlot, 0, 2)
	for _, slot := range room.slots {
		if slot != nil {
			players = append(players, slot)
		}
	}
	return players
}

// PlayerInfos returns the occupant list in the wire representation
func (room *Room) PlayerInfos() []common.PlayerInfo {
	infos := make([]common.PlayerInfo, 0, 2)
	for _, slot := range room.slots {
		if slot != nil {
			infos = append(infos, common.PlayerInfo{
				ID:   slot.ConnectionID,
				Name: slot.Name,
				Slot: slot.Slot,
			})
		}
	}
	return infos
}

// SlotFor returns the slot occupied by the given connection, or nil
func (room *Room) SlotFor(connectionID string) *PlayerSlot {
	for _, slot := range room.slots {
		if slot != nil && slot.ConnectionID == connectionID {
			return slot
		}
	}
	return nil
}

// Opponent returns the other occupant of the room, or nil if the sender is
// alone (or not in the room at all)
func (room *Room) Opponent(connectionID string) *PlayerSlot {
	for _, slot := range room.slots {
		if slot != nil && slot.ConnectionID != connectionID {
			return slot
		}
	}
	return nil
}

// ReadyCount returns how many occupants have signaled readiness. Readiness is
// tracked per slot, so duplicate signals from one connection cannot inflate
// the count.
func (room *Room) ReadyCount() int {
	count := 0
	for _, slot := range room.slots {
		if slot != nil && slot.Ready {
			count++
		}
	}
	return count
}

// ResetReady clears all readiness flags, called on any phase exit that is not
// into Countdown/InProgress
func (room *Room) ResetReady() {
	for _, slot := range room.slots {
		if slot != nil {
			slot.Ready = false
		}
	}
}

// addPlayer seats the connection in the lowest free slot. Returns nil if the
// room is full or the connection already occupies a slot.
func (room *Room) addPlayer(connectionID, name string) *PlayerSlot {
	if room.SlotFor(connectionID) != nil {
		return nil
	}
	for index := range room.slots {
		if room.slots[index] == nil {
			slot := &PlayerSlot{
				ConnectionID: connectionID,
				Name:         name,
				Slot:         index,
			}
			room.slots[index] = slot
			return slot
		}
	}
	return nil
}

// removePlayer frees the slot held by the connection. Returns the vacated
// slot, or nil if the connection wasn't seated.
func (room *Room) removePlayer(connectionID string) *PlayerSlot {
	for index, slot := range room.slots {
		if slot != nil && slot.ConnectionID == connectionID {
			room.slots[index] = nil
			return slot
		}
	}
	return nil
}

// RoomIDGenerator produces identifiers for rooms created without a
// client-supplied id. Injected so tests can substitute a deterministic source.
type RoomIDGenerator interface {
	NextRoomID() string
}

// RandomRoomIDGenerator derives room ids from random UUIDs
type RandomRoomIDGenerator struct {
}

func (generator *RandomRoomIDGenerator) NextRoomID() string {
	return "room_" + strings.Split(uuid.New().String(), "-")[0]
}

// RoomStore is the process-wide mapping from room id to room state, owned by
// the relay server for the duration of the process. It is not internally
// synchronized: the relay serializes all access behind its own mutex.
type RoomStore struct {
	rooms        map[string]*Room
	idGenerator  RoomIDGenerator
	nextSequence uint64
}

// NewRoomStore creates an empty store using the given id generator
func NewRoomStore(idGenerator RoomIDGenerator) *RoomStore {
	return &RoomStore{
		rooms:       make(map[string]*Room),
		idGenerator: idGenerator,
	}
}

// Get returns the room with the given id, or nil if it doesn't exist
func (store *RoomStore) Get(roomID string) *Room {
	return store.rooms[roomID]
}

// Create makes a new empty room in WaitingForPlayer. A room id is generated
// when the caller doesn't supply one.
func (store *RoomStore) Create(roomID string) *Room {
	if roomID == "" {
		roomID = store.idGenerator.NextRoomID()
	}

	room := &Room{
		ID:       roomID,
		Phase:    PhaseWaitingForPlayer,
		sequence: store.nextSequence,
	}
	store.nextSequence++
	store.rooms[roomID] = room
	return room
}

// Delete terminates the room and removes it from the store. Idempotent.
func (store *RoomStore) Delete(roomID string) {
	if room, exists := store.rooms[roomID]; exists {
		room.Phase = PhaseTerminated
		delete(store.rooms, roomID)
	}
}

// FirstJoinable returns the oldest room with exactly one occupant, used by
// quick-match pairing. Returns nil when every room is full or empty.
func (store *RoomStore) FirstJoinable() *Room {
	var oldest *Room
	for _, room := range store.rooms {
		if room.OccupiedSlots() != 1 {
			continue
		}
		if oldest == nil || room.sequence < oldest.sequence {
			oldest = room
		}
	}
	return oldest
}

// Count returns the number of live rooms
func (store *RoomStore) Count() int {
	return len(store.rooms)
}

// CountByPhase returns how many rooms are in each phase
func (store *RoomStore) CountByPhase() map[string]int {
	counts := make(map[string]int)
	for _, room := range store.rooms {
		counts[string(room.Phase)]++
	}
	return counts
}
