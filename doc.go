// Package authflow manages authentication state across a client application
// and a server process.
//
// On the server side it owns the time-boxed credential recovery lifecycle: an
// in-memory ResetTokenRegistry issues single-use tokens that expire
// deterministically, and a pair of command handlers turn a forgot-password
// request into a delivered recovery link and a reset submission into a
// credential update.
//
// On the client side a SessionStore holds the authenticated session as a
// state machine with pure, enumerable transitions. An ActivityMonitor expires
// idle sessions and an AccessGuard gates protected operations, both driven by
// the same store so route checks and UI decisions never disagree.
package authflow
