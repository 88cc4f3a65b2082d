// Package detect holds the model-independent half of object detection:
// letterbox geometry, decoding of YOLO-family output tensors into pixel
// space detections, class filtering and label files. The gocv adapter in
// internal/services/opencv feeds it raw tensors; everything here is pure and
// runs without OpenCV.
package detect
