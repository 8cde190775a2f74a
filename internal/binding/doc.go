// Package binding drives a host towards the LUN attachments described by a
// HostBinding document.
//
// Apply resolves (or registers) the host, syncs its initiators when the
// document lists any, then attaches and detaches LUNs until the host's
// attachments match the document. Progress is recorded in the binding's
// status as conditions and a phase.
//
// A failed step leaves the array as it is. Nothing already attached in the
// same run is rolled back; re-applying the document continues from where
// the failed run stopped.
package binding
