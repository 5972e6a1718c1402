// Package agent wraps the conversational command-line agent the relay talks
// to.
//
// The agent is a black box: it takes a message and, optionally, a session ID
// to resume, and prints either a JSON result object or free-form text.
// Classify is the one place that interprets that output. It sorts every run
// into a closed set of outcomes:
//
//   - Success: the JSON payload carried a reply and (usually) a session ID.
//   - SessionInvalid: the text says the resumed conversation no longer
//     exists. The caller should forget the session and start fresh.
//   - Failure: anything else. The raw text is shown to the user as-is.
//
// The SessionInvalid check is a substring heuristic over unstructured error
// text ("No conversation found", or any mention of "session"). The agent has
// no structured error channel, so the heuristic is kept here and tested on
// its own.
//
// Claude runs the claude CLI as a subprocess in a fixed workspace with a
// fixed tool allowlist; callers cannot change either per message.
package agent
