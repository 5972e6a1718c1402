// Package relay decides what a chat frontend replies to an inbound message.
//
// The Dispatcher is transport-neutral. Frontends translate their updates into
// a Message, call Handle, and deliver the returned Reply. Handle applies the
// allowlist, answers the built-in commands, and runs everything else through
// the conversation gateway and the renderer.
//
// Built-in commands:
//
//   - /start: greeting
//   - /new: forget the session so the next message starts fresh
//   - /status: show the user ID and whether a session is stored
//
// A user gets at most one agent turn at a time. Messages that arrive while a
// turn is running are answered with Busy instead of being queued.
package relay
