// Package conversation runs chat turns against the agent with session continuity.
//
// # Overview
//
// The conversation package sits between the message dispatcher and the agent
// invoker. It owns the mapping from chat user to agent session token and
// decides, turn by turn, whether to resume or start over.
//
// # Gateway
//
//	gw := conversation.New(store, invoker, logger)
//	result := gw.Turn(ctx, "12345", "hello")
//
// Key operations:
//
//   - Turn(ctx, user, message): Run one turn and return the reply text
//   - Reset(ctx, user): Forget the user's session
//   - HasSession(ctx, user): Report whether a session is stored
//
// # Turn Flow
//
//  1. Load the session record (an unreadable store counts as empty)
//  2. With a stored token, ask the agent to resume
//  3. If the agent reports the session gone, delete and persist, then
//     fall through to a fresh start
//  4. Without a token, send ContextPrompt followed by the message
//  5. Store the token from a successful reply
//
// A turn makes at most two agent runs and always yields non-empty text.
package conversation
