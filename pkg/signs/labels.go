// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package signs implements the conventions of the SIGNS dataset (hand signs for the digits 0 to 5):
// labels encoded in the file names, listing and splitting image directories, the hyperparameters of the
// input pipeline and InputFn, which builds the pipeline itself.
package signs

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// NumClasses in the SIGNS dataset: the digits 0 to 5.
const NumClasses = 6

// ErrInvalidLabel is matched (with errors.Is) by all label parsing errors.
var ErrInvalidLabel = errors.New("invalid label")

// LabelError reports a file name that doesn't follow the "{label}_IMG_{id}.jpg" convention.
type LabelError struct {
	Path   string
	Reason string
}

// Error implements error.
func (e *LabelError) Error() string {
	return fmt.Sprintf("invalid label in %q: %s", e.Path, e.Reason)
}

// Unwrap returns ErrInvalidLabel.
func (e *LabelError) Unwrap() error {
	return ErrInvalidLabel
}

// baseName returns the part of the path after the last separator, accepting both "/" and the OS separator.
func baseName(path string) string {
	if idx := strings.LastIndexAny(path, "/"+string(filepath.Separator)); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// ParseLabel returns the label encoded in the first character of the base name of path,
// e.g. "data/2_IMG_4584.jpg" has label 2.
func ParseLabel(path string) (int32, error) {
	name := baseName(path)
	if name == "" {
		return 0, &LabelError{Path: path, Reason: "empty file name"}
	}
	c := name[0]
	if c < '0' || c > '9' {
		return 0, &LabelError{Path: path, Reason: fmt.Sprintf("file name must start with a digit, got %q", name[:1])}
	}
	label := int32(c - '0')
	if label >= NumClasses {
		return 0, &LabelError{Path: path, Reason: fmt.Sprintf("label %d out of range [0, %d]", label, NumClasses-1)}
	}
	return label, nil
}

// LabelsFromPaths parses the labels of all paths, in order. It returns the first error found.
func LabelsFromPaths(paths []string) ([]int32, error) {
	labels := make([]int32, len(paths))
	for ii, path := range paths {
		label, err := ParseLabel(path)
		if err != nil {
			return nil, err
		}
		labels[ii] = label
	}
	return labels, nil
}

// ClassCounts returns the number of occurrences of each label. Labels outside [0, NumClasses) are ignored.
func ClassCounts(labels []int32) [NumClasses]int {
	var counts [NumClasses]int
	for _, label := range labels {
		if label >= 0 && label < NumClasses {
			counts[label]++
		}
	}
	return counts
}
