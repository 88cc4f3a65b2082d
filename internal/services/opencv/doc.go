// Package opencv adapts gocv to the pipeline stage interfaces: the camera
// frame source, the DNN detector, the overlay renderer, the container
// encoder and the live view window.
//
// Frames cross the adapter boundary as packed BGR24 bytes; Mats never leave
// this package, so every Mat created here is closed here.
package opencv
