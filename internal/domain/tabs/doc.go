/*
Package tabs maps UI tabs onto terminal sessions.

A Coordinator owns the ordered tab list of one hosting view and the single
active tab. It is the only entry point for input, resize and output
crossing the UI boundary: input and resize reach a session only while its
tab is active, and a tab's output is forwarded only after the tab has been
announced.

Events are reported through a Notifier in the order the coordinator makes
the corresponding changes. Notifier methods are called with the
coordinator's lock held (Output excepted) and must not call back into the
coordinator.

Closing the active tab activates the next tab toward the end of the list,
or the new last tab when the closed one was last, or nothing when no tabs
remain.
*/
package tabs
