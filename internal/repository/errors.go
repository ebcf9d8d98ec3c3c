// Package repository implements the SQL persistence layer: users and
// refresh tokens for auth, showtimes and rooms for the catalog, and the
// per-showtime seat inventory.  Sentinel errors let handlers map failure
// modes to HTTP statuses without inspecting driver errors.
package repository

import "errors"

// ErrShowtimeNotFound is returned when a showtime ID does not exist.
var ErrShowtimeNotFound = errors.New("showtime not found")

// ErrRoomNotFound is returned when a room ID does not exist.
var ErrRoomNotFound = errors.New("room not found")

// ErrEmailExists is returned when registering with an email that is
// already taken.
var ErrEmailExists = errors.New("email already exists")

// ErrConflict is returned when an update cannot proceed because of the
// record's current state, such as an illegal showtime status transition.
var ErrConflict = errors.New("conflict")
