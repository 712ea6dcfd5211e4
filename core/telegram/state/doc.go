// Package state holds the per-user session state machine.
//
// A Session is a plain value advanced by transition methods that either
// return the next value or an error; Manager serializes updates per user
// and commits a transition only when it completes.
package state
