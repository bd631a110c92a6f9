// Package compositor mixes per-step narration clips into a recorded video.
//
// Each clip is delayed to the wall-clock offset captured during the recording
// run and all clips are summed into a single audio track with ffmpeg. The
// video stream is copied through untouched and the output container always
// matches the input. Missing clips degrade to silence for that step rather
// than failing the composite.
package compositor
