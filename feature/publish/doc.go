// Package publish is the front end of the publishing engine.
//
// The Service ties the library scan, the channel index, the synchronizer
// and the upload orchestrator together into the commands operators use:
// upload everything missing, upload from a given book onwards, resend what
// the channel lost, and sync. Progress is logged and, when an admin chat is
// configured, reported there one message per book.
//
// The Handler exposes the same commands over HTTP:
//
//	POST /sync            full sync, then upload what is missing
//	POST /upload/all      upload every missing book
//	POST /upload/from     upload missing books from an offset onwards
//	POST /upload/missing  incremental sync, then upload what is missing
//	POST /upload/stop     stop the running batch after the book in flight
//	GET  /index           reconciliation report
//	GET  /index/gaps      keys that still need uploading
package publish
