// ABOUTME: Outcome classification for agent runs
// ABOUTME: Turns raw stdout/stderr into Success, SessionInvalid or Failure

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
)

// Kind is the closed set of agent outcomes.
type Kind int

const (
	Success Kind = iota
	SessionInvalid
	Failure
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case SessionInvalid:
		return "session_invalid"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

const (
	// NoResponse stands in for a JSON payload without a result field.
	NoResponse = "No response"

	// FallbackFailure is the reply when the agent failed without output.
	FallbackFailure = "Error running Claude"
)

// Request is one message to the agent. An empty SessionID starts a new
// conversation.
type Request struct {
	Message   string
	SessionID string
}

// Outcome is the classified result of one agent run.
type Outcome struct {
	Kind Kind

	// Reply and SessionID are set for Success. SessionID may be empty.
	Reply     string
	SessionID string

	// Raw holds the unstructured output for SessionInvalid and Failure.
	Raw string
}

// Text returns what the user should see for this outcome.
func (o Outcome) Text() string {
	if o.Kind == Success {
		return o.Reply
	}
	if o.Raw == "" {
		return FallbackFailure
	}
	return o.Raw
}

// Invoker runs the agent once.
type Invoker interface {
	Invoke(ctx context.Context, req Request) Outcome
}

// resultPayload is the part of the agent's JSON output the relay reads.
type resultPayload struct {
	Result    *string `json:"result"`
	SessionID string  `json:"session_id"`
}

// Classify interprets one run's output. stdout is tried as a JSON object
// first (the whole stream, then its last JSON line). Anything else is
// unstructured text, checked for session-expiry wording.
func Classify(stdout, stderr []byte) Outcome {
	if payload, ok := parsePayload(stdout); ok {
		reply := NoResponse
		if payload.Result != nil {
			reply = *payload.Result
		}
		return Outcome{Kind: Success, Reply: reply, SessionID: payload.SessionID}
	}

	raw := string(stdout)
	if raw == "" {
		raw = string(stderr)
	}
	if isSessionInvalid(raw) {
		return Outcome{Kind: SessionInvalid, Raw: raw}
	}
	if raw == "" {
		raw = FallbackFailure
	}
	return Outcome{Kind: Failure, Raw: raw}
}

// isSessionInvalid is the expiry heuristic: the agent reports a missing
// conversation in prose only.
func isSessionInvalid(text string) bool {
	return strings.Contains(text, "No conversation found") ||
		strings.Contains(strings.ToLower(text), "session")
}

func parsePayload(stdout []byte) (resultPayload, bool) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 {
		return resultPayload{}, false
	}
	if p, ok := decodeObject(trimmed); ok {
		return p, true
	}

	// Line-delimited output: the result object is the last JSON line.
	lines := bytes.Split(trimmed, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if p, ok := decodeObject(bytes.TrimSpace(lines[i])); ok {
			return p, true
		}
	}
	return resultPayload{}, false
}

func decodeObject(data []byte) (resultPayload, bool) {
	if len(data) == 0 || data[0] != '{' {
		return resultPayload{}, false
	}
	var p resultPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return resultPayload{}, false
	}
	return p, true
}
