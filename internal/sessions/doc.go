// Package sessions keeps a SQLite catalog of capture sessions.
//
// Every run registers a row when it starts and settles it when it stops,
// recording the output files, recorder counters and the error kind that
// ended the session. Rows left "running" by a process that died are marked
// abandoned on the next start. The catalog is an index over files on disk,
// not a copy of them; deleting it loses history but never recordings.
//
// Schema changes bump schemaVersion in schema.go; users delete the catalog to
// adopt the new schema.
package sessions
