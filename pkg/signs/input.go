// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package signs

import (
	"math/rand/v2"

	"github.com/gomlx/signs/pkg/imageops"
	"github.com/gomlx/signs/pkg/pipeline"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// InputFn builds and starts the input pipeline over the given SIGNS files.
//
// Labels are parsed from the file names (see ParseLabel). Each image is decoded, resized to
// params.ImageSize x params.ImageSize and, if params.Augment is set, randomly augmented.
// The resulting stream yields one map per batch with the pipeline.ImagesKey and pipeline.LabelsKey tensors.
//
// Use Params.EvalParams for a deterministic evaluation pipeline. The caller owns the returned
// pipeline and should call Done on it when finished.
func InputFn(filenames []string, params Params) (*pipeline.Pipeline, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	labels, err := LabelsFromPaths(filenames)
	if err != nil {
		return nil, err
	}
	elements := make([]pipeline.Element, len(filenames))
	for ii, filename := range filenames {
		elements[ii] = pipeline.Element{Path: filename, Label: labels[ii]}
	}

	filter, err := imageops.ParseFilter(params.ResizeFilter)
	if err != nil {
		return nil, err
	}
	decoder := imageops.NewDecoder(params.ImageSize).WithFilter(filter)
	augment := params.Augment
	augmenter := params.Augmenter()
	mapFn := func(elem pipeline.Element, rng *rand.Rand) (pipeline.Sample, error) {
		img, err := decoder.DecodeFile(elem.Path)
		if err != nil {
			return pipeline.Sample{}, err
		}
		if augment {
			augmenter.Apply(img, rng)
		}
		return pipeline.Sample{Image: img, Label: elem.Label}, nil
	}

	name, shortName := "signs-train", "train"
	if !params.Augment && !params.Shuffle {
		name, shortName = "signs-eval", "eval"
	}
	klog.V(1).Infof("InputFn: %d files for %q, class counts %v", len(filenames), name, ClassCounts(labels))
	p, err := pipeline.New(name, elements, mapFn).
		WithName(name, shortName).
		NumEpochs(params.NumEpochs).
		BatchSize(params.BatchSize).
		Parallelism(params.NumParallelCalls).
		Prefetch(params.Prefetch).
		Shuffle(params.Shuffle).
		Seed(params.Seed).
		Float16Images(params.Float16Images()).
		Start()
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to build input pipeline %q", name)
	}
	return p, nil
}
