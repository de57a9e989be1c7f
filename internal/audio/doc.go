// Package audio reads, joins and plays the WAV files produced by the speech
// engine. Playback goes through an external player command when one is
// installed, or through the sound device via oto in cgo builds.
package audio
