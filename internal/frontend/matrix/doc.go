// Package matrix connects a Matrix account to the relay dispatcher.
//
// The bridge logs in with a password, follows the sync stream, joins rooms it
// is invited to, and answers text messages with org.matrix.custom.html
// replies. Room allowlist, command prefix and typing indicator work as in the
// other coven bridges.
package matrix
