// Package inference runs the brain-MRI classifiers behind POST /classify.
//
// The Engine holds one Model per catalog entry (IDTNet, VGG16, DenseNet121,
// InceptionV1). Models are ONNX graphs taking a 1x128x128x3 float32 tensor
// with RGB values in [0, 1] and returning one score per class label.
//
// If any model fails to load, the Engine runs in demo mode: every request
// gets the fixed demo verdicts with a random 154-441 ms processing time,
// and responses are flagged demo_mode.
//
// Results for identical image bytes may be cached in Redis.
package inference
