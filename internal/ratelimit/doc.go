// Package ratelimit applies one or more sliding-window rate limits to
// string-keyed categories. It backs control.Socket's abuse tracking: a
// peer identified by uid that sends too many malformed headers or
// unknown actions within a window is logged loudly, without the listener
// having to wait out a per-connection timeout to notice.
package ratelimit
