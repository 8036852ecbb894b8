// Package longpoll blocks on a channel of values until it closes or the
// caller's context is canceled, delivering each value to a handler as it
// arrives. It backs loggerd's follow-mode log reads.
package longpoll
