// Package store holds the relay's shared in-memory state: the latest pointer
// coordinates, the selected code pair, the standalone button index, the
// per-user pose map, and the three event sequence counters (button, haptic,
// cue) that sessions compare against their own watermarks.
//
// Nothing is persisted. A restart resets every value to its default.
// Optional TTL eviction of user records is available through Run; it is off
// by default so that records of disconnected users are kept indefinitely.
package store
