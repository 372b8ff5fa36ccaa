// Package redis shares run state between crackle processes through Redis:
// slurp recordings, fault lists and per-target run locks.
package redis
