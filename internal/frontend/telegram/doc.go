// Package telegram connects a Telegram bot to the relay dispatcher.
//
// The bot long-polls getUpdates, hands each private text or voice message to
// the dispatcher in its own goroutine, and answers with sendMessage using
// parse_mode=HTML. A typing action is refreshed while the agent works. When
// Telegram rejects the HTML (a truncated reply can cut a tag in half) the
// reply is sent again without a parse mode.
package telegram
