// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package signs

import (
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/signs/pkg/imageops"
	"github.com/pkg/errors"
)

// Hyperparameter names, as used in context.Context and in the "-set" command-line flag.
const (
	// ParamNumEpochs is the number of passes over the dataset.
	ParamNumEpochs = "num_epochs"

	// ParamBatchSize is the number of samples per batch.
	ParamBatchSize = "batch_size"

	// ParamNumParallelCalls is the number of images decoded and augmented concurrently.
	// If <= 0, it uses the number of CPUs.
	ParamNumParallelCalls = "num_parallel_calls"

	// ParamImageSize is the height and width images are resized to.
	ParamImageSize = "image_size"

	// ParamPrefetch is the number of batches prepared ahead of the consumer.
	ParamPrefetch = "prefetch"

	// ParamSeed for shuffling, augmentation and the train/eval split. 0 uses a time based seed.
	ParamSeed = "seed"

	// ParamAugment enables random flips, brightness and saturation changes.
	ParamAugment = "augment"

	// ParamShuffle enables re-shuffling the dataset at every epoch.
	ParamShuffle = "shuffle"

	// ParamFlipProb is the probability of flipping an image horizontally.
	ParamFlipProb = "flip_prob"

	// ParamMaxBrightnessDelta is the maximum absolute brightness change, with values in [0, 1].
	ParamMaxBrightnessDelta = "max_brightness_delta"

	// ParamSaturationLower is the lower bound of the random saturation factor.
	ParamSaturationLower = "saturation_lower"

	// ParamSaturationUpper is the upper bound of the random saturation factor.
	ParamSaturationUpper = "saturation_upper"

	// ParamResizeFilter is the interpolation filter: "nearest", "box", "bilinear", "bicubic" or "lanczos".
	ParamResizeFilter = "resize_filter"

	// ParamImagesDType is the dtype of the images tensor: "float32" or "float16".
	ParamImagesDType = "images_dtype"

	// ParamEvalFraction is the fraction of the files held out for evaluation, in [0, 1).
	ParamEvalFraction = "eval_fraction"
)

// Params configures InputFn.
type Params struct {
	NumEpochs        int
	BatchSize        int
	NumParallelCalls int
	ImageSize        int
	Prefetch         int
	Seed             uint64

	// Augment and Shuffle are true for training, false for evaluation.
	Augment, Shuffle bool

	FlipProb, MaxBrightnessDelta     float64
	SaturationLower, SaturationUpper float64
	ResizeFilter                     string
	ImagesDType                      string
	EvalFraction                     float64
}

// DefaultParams returns the default training parameters.
func DefaultParams() Params {
	augmenter := imageops.DefaultAugmenter()
	return Params{
		NumEpochs:          10,
		BatchSize:          32,
		NumParallelCalls:   4,
		ImageSize:          imageops.DefaultImageSize,
		Prefetch:           1,
		Augment:            true,
		Shuffle:            true,
		FlipProb:           augmenter.FlipProb,
		MaxBrightnessDelta: augmenter.MaxBrightnessDelta,
		SaturationLower:    augmenter.SaturationLower,
		SaturationUpper:    augmenter.SaturationUpper,
		ResizeFilter:       imageops.DefaultFilter,
		ImagesDType:        "float32",
	}
}

// EvalParams returns p configured for evaluation: one epoch, no augmentation and no shuffling.
func (p Params) EvalParams() Params {
	p.NumEpochs = 1
	p.Augment = false
	p.Shuffle = false
	return p
}

// CreateDefaultContext returns a context.Context with the default value of every hyperparameter set.
func CreateDefaultContext() *context.Context {
	ctx := context.New()
	defaults := DefaultParams()
	ctx.SetParams(map[string]any{
		ParamNumEpochs:        defaults.NumEpochs,
		ParamBatchSize:        defaults.BatchSize,
		ParamNumParallelCalls: defaults.NumParallelCalls,
		ParamImageSize:        defaults.ImageSize,
		ParamPrefetch:         defaults.Prefetch,
		ParamSeed:             int(defaults.Seed),
		ParamAugment:          defaults.Augment,
		ParamShuffle:          defaults.Shuffle,

		// Augmentation, only used if augment is true.
		ParamFlipProb:           defaults.FlipProb,
		ParamMaxBrightnessDelta: defaults.MaxBrightnessDelta,
		ParamSaturationLower:    defaults.SaturationLower,
		ParamSaturationUpper:    defaults.SaturationUpper,

		ParamResizeFilter: defaults.ResizeFilter,
		ParamImagesDType:  defaults.ImagesDType,
		ParamEvalFraction: defaults.EvalFraction,
	})
	return ctx
}

// ParamsFromContext reads the hyperparameters from ctx, using the defaults for the ones not set,
// and validates them.
func ParamsFromContext(ctx *context.Context) (params Params, err error) {
	defaults := DefaultParams()
	var seed int
	err = exceptions.TryCatch[error](func() {
		seed = context.GetParamOr(ctx, ParamSeed, int(defaults.Seed))
		params = Params{
			NumEpochs:          context.GetParamOr(ctx, ParamNumEpochs, defaults.NumEpochs),
			BatchSize:          context.GetParamOr(ctx, ParamBatchSize, defaults.BatchSize),
			NumParallelCalls:   context.GetParamOr(ctx, ParamNumParallelCalls, defaults.NumParallelCalls),
			ImageSize:          context.GetParamOr(ctx, ParamImageSize, defaults.ImageSize),
			Prefetch:           context.GetParamOr(ctx, ParamPrefetch, defaults.Prefetch),
			Augment:            context.GetParamOr(ctx, ParamAugment, defaults.Augment),
			Shuffle:            context.GetParamOr(ctx, ParamShuffle, defaults.Shuffle),
			FlipProb:           context.GetParamOr(ctx, ParamFlipProb, defaults.FlipProb),
			MaxBrightnessDelta: context.GetParamOr(ctx, ParamMaxBrightnessDelta, defaults.MaxBrightnessDelta),
			SaturationLower:    context.GetParamOr(ctx, ParamSaturationLower, defaults.SaturationLower),
			SaturationUpper:    context.GetParamOr(ctx, ParamSaturationUpper, defaults.SaturationUpper),
			ResizeFilter:       context.GetParamOr(ctx, ParamResizeFilter, defaults.ResizeFilter),
			ImagesDType:        context.GetParamOr(ctx, ParamImagesDType, defaults.ImagesDType),
			EvalFraction:       context.GetParamOr(ctx, ParamEvalFraction, defaults.EvalFraction),
		}
	})
	if err != nil {
		return Params{}, errors.WithMessage(err, "failed to read hyperparameters from context")
	}
	if seed < 0 {
		return Params{}, errors.Errorf("%s must be >= 0, got %d", ParamSeed, seed)
	}
	params.Seed = uint64(seed)
	if err = params.Validate(); err != nil {
		return Params{}, err
	}
	return params, nil
}

// Augmenter returns the imageops.Augmenter configured by p.
func (p Params) Augmenter() imageops.Augmenter {
	return imageops.Augmenter{
		FlipProb:           p.FlipProb,
		MaxBrightnessDelta: p.MaxBrightnessDelta,
		SaturationLower:    p.SaturationLower,
		SaturationUpper:    p.SaturationUpper,
	}
}

// Float16Images reports whether the images tensor should be float16.
func (p Params) Float16Images() bool {
	return strings.ToLower(p.ImagesDType) == "float16"
}

// Validate returns an error describing the first invalid parameter.
func (p Params) Validate() error {
	if p.NumEpochs < 1 {
		return errors.Errorf("%s must be >= 1, got %d", ParamNumEpochs, p.NumEpochs)
	}
	if p.BatchSize < 1 {
		return errors.Errorf("%s must be >= 1, got %d", ParamBatchSize, p.BatchSize)
	}
	if p.ImageSize < 1 {
		return errors.Errorf("%s must be >= 1, got %d", ParamImageSize, p.ImageSize)
	}
	if p.Prefetch < 0 {
		return errors.Errorf("%s must be >= 0, got %d", ParamPrefetch, p.Prefetch)
	}
	if err := p.Augmenter().Validate(); err != nil {
		return err
	}
	if _, err := imageops.ParseFilter(p.ResizeFilter); err != nil {
		return errors.WithMessagef(err, "invalid %s", ParamResizeFilter)
	}
	switch strings.ToLower(p.ImagesDType) {
	case "float32", "float16":
	default:
		return errors.Errorf("%s must be \"float32\" or \"float16\", got %q", ParamImagesDType, p.ImagesDType)
	}
	if p.EvalFraction < 0 || p.EvalFraction >= 1 {
		return errors.Errorf("%s must be in [0, 1), got %g", ParamEvalFraction, p.EvalFraction)
	}
	return nil
}
