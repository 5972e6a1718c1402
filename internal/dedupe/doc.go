// Package dedupe drops inbound chat messages that a transport delivers more
// than once. Keys are remembered for a fixed window in a size-bounded cache.
package dedupe
