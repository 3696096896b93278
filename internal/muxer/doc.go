// Package muxer wraps the external ffmpeg invocation that joins separate
// video and audio fragments into one container without re-encoding.
//
// Arguments are always passed as a vector; no shell is involved.
package muxer
