// Package playback runs a lesson from source text to sound: it asks a script
// generator for the narration, an audio generator for the voice, loads the
// result into the playback device and tracks the session through
//
//	idle -> generating_script -> generating_audio -> ready -> playing <-> paused
//
// with error reachable from every step. Progress is forwarded to a
// ProgressUpdater on pause and on completion, and lesson events go to an
// events.Tracker.
package playback
