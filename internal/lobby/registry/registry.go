// Package registry tracks which connection belongs to which player and which
// room each online player occupies.
package registry

import (
	"sort"
	"sync"

	"github.com/cory-johannsen/lobby/internal/transport"
)

// Member is one occupant of a room roster together with its live connection.
type Member struct {
	PlayerID int64
	Conn     transport.Conn
}

// Stats summarizes the registry for health reporting.
type Stats struct {
	Online int `json:"online"`
	Rooms  int `json:"rooms"`
}

// Registry is the single source of truth for sessions and room membership.
// All methods are safe for concurrent use.
//
// Invariants, holding whenever the lock is released:
//   - conns[p] == c  iff  players[c] == p
//   - rooms[p] == r  iff  p ∈ rosters[r], and then p has a session
//   - no roster in rosters is empty
type Registry struct {
	mu      sync.RWMutex
	conns   map[int64]transport.Conn     // player → connection
	players map[transport.Conn]int64     // connection → player
	rooms   map[int64]int64              // player → room
	rosters map[int64]map[int64]struct{} // room → players
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		conns:   make(map[int64]transport.Conn),
		players: make(map[transport.Conn]int64),
		rooms:   make(map[int64]int64),
		rosters: make(map[int64]map[int64]struct{}),
	}
}

// Register installs conn as the session for playerID.
//
// Postcondition: playerID is online on conn. A previous connection for the
// player is forgotten (but not closed). If conn was serving a different
// player, that player's session and membership are removed first.
func (r *Registry) Register(playerID int64, conn transport.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.players[conn]; ok && prev != playerID {
		r.dropSessionLocked(prev)
	}
	if old, ok := r.conns[playerID]; ok && old != conn {
		delete(r.players, old)
	}
	r.conns[playerID] = conn
	r.players[conn] = playerID
}

// Unregister removes the session served by conn along with its room
// membership. It is a no-op for a connection without a session.
//
// Postcondition: Returns the player that was removed and true, or 0 and false.
func (r *Registry) Unregister(conn transport.Conn) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	playerID, ok := r.players[conn]
	if !ok {
		return 0, false
	}
	r.dropSessionLocked(playerID)
	return playerID, true
}

// JoinRoom records playerID as an occupant of roomID, leaving any room the
// player was previously in.
//
// Postcondition: Returns false without changes if the player is not online.
func (r *Registry) JoinRoom(playerID, roomID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, online := r.conns[playerID]; !online {
		return false
	}
	r.leaveLocked(playerID)
	r.rooms[playerID] = roomID
	roster := r.rosters[roomID]
	if roster == nil {
		roster = make(map[int64]struct{})
		r.rosters[roomID] = roster
	}
	roster[playerID] = struct{}{}
	return true
}

// LeaveRoom removes playerID from its room.
//
// Postcondition: Returns the room left and true, or 0 and false if the player
// was in no room.
func (r *Registry) LeaveRoom(playerID int64) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(playerID)
}

// DisbandRoom removes every occupant of roomID from the roster.
//
// Postcondition: Returns the ids of the removed players in ascending order.
func (r *Registry) DisbandRoom(roomID int64) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	roster, ok := r.rosters[roomID]
	if !ok {
		return nil
	}
	ids := make([]int64, 0, len(roster))
	for playerID := range roster {
		ids = append(ids, playerID)
		delete(r.rooms, playerID)
	}
	delete(r.rosters, roomID)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// IsOnline reports whether playerID has a live session.
func (r *Registry) IsOnline(playerID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[playerID]
	return ok
}

// ConnectionOf returns the connection serving playerID.
func (r *Registry) ConnectionOf(playerID int64) (transport.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[playerID]
	return conn, ok
}

// PlayerOf returns the player served by conn.
func (r *Registry) PlayerOf(conn transport.Conn) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	playerID, ok := r.players[conn]
	return playerID, ok
}

// RoomOf returns the room playerID currently occupies.
func (r *Registry) RoomOf(playerID int64) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.rooms[playerID]
	return roomID, ok
}

// MembersOf returns the occupants of roomID with their connections, ordered
// by player id. An unknown room yields an empty slice.
func (r *Registry) MembersOf(roomID int64) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roster := r.rosters[roomID]
	members := make([]Member, 0, len(roster))
	for playerID := range roster {
		members = append(members, Member{PlayerID: playerID, Conn: r.conns[playerID]})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].PlayerID < members[j].PlayerID })
	return members
}

// Stats returns the number of online players and non-empty rooms.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Online: len(r.conns), Rooms: len(r.rosters)}
}

// dropSessionLocked removes playerID's session and membership.
//
// Precondition: r.mu is held for writing.
func (r *Registry) dropSessionLocked(playerID int64) {
	r.leaveLocked(playerID)
	if conn, ok := r.conns[playerID]; ok {
		delete(r.players, conn)
		delete(r.conns, playerID)
	}
}

// leaveLocked removes playerID from its roster, deleting the roster if it
// becomes empty.
//
// Precondition: r.mu is held for writing.
func (r *Registry) leaveLocked(playerID int64) (int64, bool) {
	roomID, ok := r.rooms[playerID]
	if !ok {
		return 0, false
	}
	delete(r.rooms, playerID)
	if roster, ok := r.rosters[roomID]; ok {
		delete(roster, playerID)
		if len(roster) == 0 {
			delete(r.rosters, roomID)
		}
	}
	return roomID, true
}
