// Package scheduler runs the deferred-send loop.
//
// On every poll it loads the pending collection, executes due transfers
// through the payment gateway, and moves terminal records to the archive.
// Failures are recorded on the record itself; nothing here can take the
// process down.
package scheduler
