// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package signs

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/pkg/errors"
)

// ListImages returns the sorted paths of the JPEG files (".jpg" or ".jpeg", any case) in dir.
// Sub-directories and hidden files are skipped. A leading "~" in dir is replaced by the home directory.
func ListImages(dir string) ([]string, error) {
	dir, err := fsutil.ReplaceTildeInDir(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list images in %q", dir)
	}
	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".jpg", ".jpeg":
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// SplitTrainEval splits paths into a train and an eval set, with round(fraction*len(paths)) elements
// in the eval set. The split is a deterministic function of seed, and both sets keep the original order.
//
// fraction must be in [0, 1).
func SplitTrainEval(paths []string, fraction float64, seed uint64) (train, eval []string, err error) {
	if fraction < 0 || fraction >= 1 {
		return nil, nil, errors.Errorf("eval fraction must be in [0, 1), got %g", fraction)
	}
	numEval := int(fraction*float64(len(paths)) + 0.5)
	if numEval == 0 {
		return slices.Clone(paths), nil, nil
	}
	rng := rand.New(rand.NewPCG(seed, uint64(len(paths))))
	isEval := make([]bool, len(paths))
	for _, idx := range rng.Perm(len(paths))[:numEval] {
		isEval[idx] = true
	}
	train = make([]string, 0, len(paths)-numEval)
	eval = make([]string, 0, numEval)
	for ii, path := range paths {
		if isEval[ii] {
			eval = append(eval, path)
		} else {
			train = append(train, path)
		}
	}
	return train, eval, nil
}
