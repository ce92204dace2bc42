//go:build linux || darwin || netbsd || freebsd || openbsd || dragonfly
// +build linux darwin netbsd freebsd openbsd dragonfly

// Package evrt is a single-process, multi-threaded event and message
// runtime for building networked services.
//
// Three pieces give the runtime its shape:
//
//   - Loop, a per-thread event loop that multiplexes byte-stream I/O,
//     timers, idle work and a wakeup handle into a strict priority-ordered
//     dispatch schedule (see Loop.RunTurn).
//   - Pipe and Signal, a lock-free message-passing fabric that lets any
//     goroutine deliver typed messages to an Object owned by another
//     loop, with weak-reference safety across Object destruction.
//   - The parser/json and parser/xml packages, an incremental, suspendable
//     lexer pattern that consumes arbitrary network-chunked input without
//     buffering whole documents.
//
// A Thread pairs a Loop with a dedicated goroutine and a MessageQueue.
// Objects are affiliated with exactly one MessageQueue for their whole
// lifetime; Pipe and Signal route deliveries to the right queue, either
// invoking the target synchronously (same queue) or enqueuing a message
// envelope and waking the target loop (cross queue).
package evrt
