package server

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedRoomIDGenerator returns a deterministic id sequence for tests
type fixedRoomIDGenerator struct {
	counter int
}

func (generator *fixedRoomIDGenerator) NextRoomID() string {
	generator.counter++
	return fmt.Sprintf("room_%d", generator.counter)
}

func TestRoomStoreCreateGeneratesID(t *testing.T) {
	store := NewRoomStore(new(RandomRoomIDGenerator))

	room := store.Create("")
	assert.True(t, strings.HasPrefix(room.ID, "room_"), "Generated room ids should carry the room_ prefix")
	assert.Equal(t, PhaseWaitingForPlayer, room.Phase, "A fresh room should wait for its first player")
	assert.Same(t, room, store.Get(room.ID), "The store should find the room it just created")
}

func TestRoomStoreCreateKeepsSuppliedID(t *testing.T) {
	store := NewRoomStore(new(fixedRoomIDGenerator))

	room := store.Create("R1")
	assert.Equal(t, "R1", room.ID, "A client-supplied room id should be kept verbatim")
}

func TestRoomSlotAssignment(t *testing.T) {
	store := NewRoomStore(new(fixedRoomIDGenerator))
	room := store.Create("R1")

	first := room.addPlayer("conn-a", "Alice")
	require.NotNil(t, first, "The first player should be seated")
	assert.Equal(t, 0, first.Slot, "The first-admitted player always takes slot 0")

	second := room.addPlayer("conn-b", "Bob")
	require.NotNil(t, second, "The second player should be seated")
	assert.Equal(t, 1, second.Slot, "The second-admitted player always takes slot 1")

	assert.Nil(t, room.addPlayer("conn-c", "Carol"), "A third player must be rejected")
	assert.Nil(t, room.addPlayer("conn-a", "Alice"), "Seating the same connection twice must be rejected")
	assert.Equal(t, 2, room.OccupiedSlots(), "The room should report two occupied slots")
}

// A remaining occupant keeps its slot when the other side leaves; a newcomer
// takes the freed slot instead
func TestRoomSlotsNeverRenumbered(t *testing.T) {
	store := NewRoomStore(new(fixedRoomIDGenerator))
	room := store.Create("R1")
	room.addPlayer("conn-a", "Alice")
	room.addPlayer("conn-b", "Bob")

	vacated := room.removePlayer("conn-a")
	require.NotNil(t, vacated, "Removing a seated player should return the vacated slot")
	assert.Equal(t, 0, vacated.Slot, "Alice held slot 0")

	bob := room.SlotFor("conn-b")
	require.NotNil(t, bob, "Bob should still be seated")
	assert.Equal(t, 1, bob.Slot, "Bob must keep slot 1 after Alice leaves")

	carol := room.addPlayer("conn-c", "Carol")
	require.NotNil(t, carol, "A newcomer should be seated into the freed slot")
	assert.Equal(t, 0, carol.Slot, "The newcomer takes the freed slot 0")
}

func TestReadyCountIsPerSlot(t *testing.T) {
	store := NewRoomStore(new(fixedRoomIDGenerator))
	room := store.Create("R1")
	alice := room.addPlayer("conn-a", "Alice")
	room.addPlayer("conn-b", "Bob")

	alice.Ready = true
	alice.Ready = true
	assert.Equal(t, 1, room.ReadyCount(), "Readiness is a per-slot flag, duplicate signals cannot inflate the count")

	room.ResetReady()
	assert.Equal(t, 0, room.ReadyCount(), "ResetReady should clear every readiness flag")
	assert.False(t, alice.Ready, "Alice's flag should be cleared")
}

func TestRoomStoreDelete(t *testing.T) {
	store := NewRoomStore(new(fixedRoomIDGenerator))
	room := store.Create("R1")

	store.Delete("R1")
	assert.Nil(t, store.Get("R1"), "A deleted room must not be queryable")
	assert.Equal(t, PhaseTerminated, room.Phase, "Deletion terminates the room")
	assert.Equal(t, 0, store.Count(), "The store should be empty after deletion")

	store.Delete("R1") // idempotent
}

func TestFirstJoinableScansInCreationOrder(t *testing.T) {
	store := NewRoomStore(new(fixedRoomIDGenerator))

	older := store.Create("older")
	older.addPlayer("conn-a", "Alice")

	newer := store.Create("newer")
	newer.addPlayer("conn-b", "Bob")

	full := store.Create("full")
	full.addPlayer("conn-c", "Carol")
	full.addPlayer("conn-d", "Dave")

	store.Create("empty")

	assert.Same(t, older, store.FirstJoinable(), "Quick-match should pair into the oldest half-full room")

	older.addPlayer("conn-e", "Eve")
	assert.Same(t, newer, store.FirstJoinable(), "Once the oldest room fills, the next half-full room is chosen")
}

func TestCountByPhase(t *testing.T) {
	store := NewRoomStore(new(fixedRoomIDGenerator))
	store.Create("a")
	store.Create("b")
	store.Create("c").Phase = PhaseInProgress

	counts := store.CountByPhase()
	assert.Equal(t, 2, counts[string(PhaseWaitingForPlayer)], "Two rooms are waiting for players")
	assert.Equal(t, 1, counts[string(PhaseInProgress)], "One room is in progress")
}
