// Package models - Definitions for model output class sets.
package models

import "github.com/nvr-ai/go-arlocalize/models/model"

// COCOClasses is the 80 COCO classes, zero-based, as YOLO models index them.
var COCOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck",
	"boat", "traffic light", "fire hydrant", "stop sign", "parking meter", "bench",
	"bird", "cat", "dog", "horse", "sheep", "cow", "elephant", "bear", "zebra",
	"giraffe", "backpack", "umbrella", "handbag", "tie", "suitcase", "frisbee",
	"skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup",
	"fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch",
	"potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear",
	"hair drier", "toothbrush",
}

// PascalVOCClasses is the 20 Pascal VOC classes, zero-based, as yolov2-tiny-voc indexes them.
var PascalVOCClasses = []string{
	"aeroplane", "bicycle", "bird", "boat", "bottle", "bus", "car", "cat",
	"chair", "cow", "diningtable", "dog", "horse", "motorbike", "person",
	"pottedplant", "sheep", "sofa", "train", "tvmonitor",
}

// DefaultLabels returns a copy of the built-in label table for a model, or nil
// when the model has none (Custom Vision exports are always trained on custom
// tags).
func DefaultLabels(name model.Name) []string {
	var labels []string
	switch name {
	case model.ModelNameYOLOv2Tiny:
		labels = PascalVOCClasses
	case model.ModelNameYOLOv3Tiny:
		labels = COCOClasses
	default:
		return nil
	}
	return append([]string(nil), labels...)
}
