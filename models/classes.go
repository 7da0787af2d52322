// Package models - class label tables, label lookup and decoder dispatch.
package models

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// ClassIndexError is returned when a class id has no entry in the label table.
type ClassIndexError struct {
	ClassID int
	Len     int
}

func (e *ClassIndexError) Error() string {
	return fmt.Sprintf("%s: class %d with %d labels", postprocess.ErrClassIndexOutOfRange, e.ClassID, e.Len)
}

// Is matches postprocess.ErrClassIndexOutOfRange.
func (e *ClassIndexError) Is(target error) bool {
	return target == postprocess.ErrClassIndexOutOfRange
}

// Labels maps decoded class ids to human-readable names. Index 0 is the first real
// class; background is never part of the table.
type Labels []string

// Name returns the label of a class id.
//
// Arguments:
//   - classID: The class id reported by a decoder.
//
// Returns:
//   - string: The label.
//   - error: A ClassIndexError when classID is negative or beyond the table.
func (l Labels) Name(classID int) (string, error) {
	if classID < 0 || classID >= len(l) {
		return "", &ClassIndexError{ClassID: classID, Len: len(l)}
	}
	return l[classID], nil
}

// Index returns the class id of a label, or -1 when it is not in the table.
func (l Labels) Index(name string) int {
	for i, n := range l {
		if n == name {
			return i
		}
	}
	return -1
}

// COCOClasses is the 80 COCO classes in the order of coco.names.
var COCOClasses = Labels{
	"person",
	"bicycle",
	"car",
	"motorcycle",
	"airplane",
	"bus",
	"train",
	"truck",
	"boat",
	"traffic light",
	"fire hydrant",
	"stop sign",
	"parking meter",
	"bench",
	"bird",
	"cat",
	"dog",
	"horse",
	"sheep",
	"cow",
	"elephant",
	"bear",
	"zebra",
	"giraffe",
	"backpack",
	"umbrella",
	"handbag",
	"tie",
	"suitcase",
	"frisbee",
	"skis",
	"snowboard",
	"sports ball",
	"kite",
	"baseball bat",
	"baseball glove",
	"skateboard",
	"surfboard",
	"tennis racket",
	"bottle",
	"wine glass",
	"cup",
	"fork",
	"knife",
	"spoon",
	"bowl",
	"banana",
	"apple",
	"sandwich",
	"orange",
	"broccoli",
	"carrot",
	"hot dog",
	"pizza",
	"donut",
	"cake",
	"chair",
	"couch",
	"potted plant",
	"bed",
	"dining table",
	"toilet",
	"tv",
	"laptop",
	"mouse",
	"remote",
	"keyboard",
	"cell phone",
	"microwave",
	"oven",
	"toaster",
	"sink",
	"refrigerator",
	"book",
	"clock",
	"vase",
	"scissors",
	"teddy bear",
	"hair drier",
	"toothbrush",
}

// PascalVOCClasses is the 20 Pascal VOC classes in the order of voc.names.
var PascalVOCClasses = Labels{
	"aeroplane",
	"bicycle",
	"bird",
	"boat",
	"bottle",
	"bus",
	"car",
	"cat",
	"chair",
	"cow",
	"diningtable",
	"dog",
	"horse",
	"motorbike",
	"person",
	"pottedplant",
	"sheep",
	"sofa",
	"train",
	"tvmonitor",
}

// LabelsFor returns a copy of the built-in label table of a model family.
func LabelsFor(family model.Family) (Labels, error) {
	switch family {
	case model.ModelFamilyCOCO:
		return append(Labels(nil), COCOClasses...), nil
	case model.ModelFamilyVOC:
		return append(Labels(nil), PascalVOCClasses...), nil
	default:
		return nil, errors.Errorf("no built-in labels for model family %q", family)
	}
}

// LoadLabels reads a names file with one label per line, such as coco.names.
//
// Trailing blank lines are ignored; blank lines in between keep their slot so the
// remaining labels stay aligned with the class ids of the network.
func LoadLabels(path string) (Labels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open labels")
	}
	defer f.Close()

	var labels Labels
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		labels = append(labels, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read labels %s", path)
	}

	for len(labels) > 0 && strings.TrimSpace(labels[len(labels)-1]) == "" {
		labels = labels[:len(labels)-1]
	}
	if len(labels) == 0 {
		return nil, errors.Errorf("labels file %s is empty", path)
	}

	return labels, nil
}
