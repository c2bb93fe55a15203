// Package collect walks a study's hierarchy, downloads and validates each
// proteome's files into the submission directory, and drives a full run
// from discovery through manifest composition and upload.
//
// The walker is lazy: it yields one preparation at a time so metadata can be
// checked before any file of that preparation is fetched. Everything after
// discovery is sequential and owned by a single Pipeline.Run call.
package collect
