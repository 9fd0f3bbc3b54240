/*
Package terminal owns the lifecycle of interactive shell sessions.

A Registry spawns sessions through a Backend, enforces the session limit
and forgets sessions when they end. Each Session binds one pty handle to an
ID and converges every end-of-life path (Kill, spontaneous exit, KillAll)
on a single idempotent cleanup. Output flows from the handle's reader
goroutine through the Router, which fans it out to subscribers in pty
order and keeps a bounded scrollback for replay.

Subscribers run on the reader goroutine. They must return quickly and must
not call Session.Kill or Registry.Kill synchronously; hand such work to
another goroutine instead.
*/
package terminal
