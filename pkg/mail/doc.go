// Package mail implements the delivery and reply-signal ports.
//
// Gmail sends through users.messages.send and detects replies with a
// users.messages.list search. Outbox writes each message as an .eml file for
// offline runs, and ReplyFile reads replies recorded by hand in a YAML file.
package mail
