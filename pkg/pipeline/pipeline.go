// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package pipeline implements a staged input pipeline that turns a list of labeled files into a stream
// of batches of tensors, ready to be fed to a training loop:
//
//	source -> shuffle -> repeat (epochs) -> map (bounded worker pool) -> batch -> prefetch
//
// The map stage runs a MapFn (typically decode, resize and augment) on up to Parallelism elements at the same
// time. Results are re-sequenced, so batches are always assembled in the (shuffled) source order, and for a
// fixed seed a Pipeline yields exactly the same batches regardless of scheduling.
//
// Batches never span two epochs: the last batch of each epoch may be smaller than the batch size.
//
// A Pipeline is a one-shot stream: once all epochs are consumed Next returns ErrEndOfStream on every call.
// It also implements train.Dataset, so it can be given to a train.Loop directly, in which case Reset
// starts a fresh run (with a new shuffle).
//
// Example:
//
//	p, err := pipeline.New("train", elements, mapFn).
//		NumEpochs(10).BatchSize(32).Parallelism(4).Start()
//	if err != nil { ... }
//	defer p.Done()
//	for {
//		batch, err := p.Next()
//		if err == pipeline.ErrEndOfStream {
//			break
//		}
//		if err != nil { ... }
//		images, labels := batch[pipeline.ImagesKey], batch[pipeline.LabelsKey]
//		...
//	}
package pipeline

import (
	"io"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/signs/pkg/imageops"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Keys of the batch map returned by Pipeline.Next.
const (
	// ImagesKey maps to a float tensor shaped `[batch_size, height, width, 3]`.
	ImagesKey = "images"

	// LabelsKey maps to an int32 tensor shaped `[batch_size]`.
	LabelsKey = "labels"
)

type endOfStream struct{}

func (endOfStream) Error() string { return "pipeline: end of stream" }

// Is makes errors.Is(ErrEndOfStream, io.EOF) true.
func (endOfStream) Is(target error) bool { return target == io.EOF }

// ErrEndOfStream is returned by Pipeline.Next once all epochs have been consumed.
//
// It matches io.EOF with errors.Is.
var ErrEndOfStream error = endOfStream{}

// Element is one entry of the pipeline source: a file path and its label.
type Element struct {
	Path  string
	Label int32
}

// Sample is one element after the map stage: its image and label.
type Sample struct {
	Image *imageops.Image
	Label int32
}

// MapFn transforms an Element into a Sample. It is called concurrently, so it must not mutate shared state.
//
// rng is owned by the call, and it's seeded from the pipeline seed and the position of the element in the
// stream, so the same element gets different random draws in different epochs.
type MapFn func(elem Element, rng *rand.Rand) (Sample, error)

// Stats of a pipeline run.
type Stats struct {
	Samples, Batches, Epochs int64
}

// Pipeline is the stream of batches. Create it with New, configure it and then call Start.
type Pipeline struct {
	name, shortName string
	elements        []Element
	mapFn           MapFn

	numEpochs, batchSize, parallelism, prefetch int
	shuffle                                     bool
	seed                                        uint64
	float16Images                               bool

	// numRuns is incremented at every Start/Reset, so each run gets a different shuffle.
	numRuns   uint64
	impl      *pipelineImpl
	lastStats Stats

	// keepAlive is used only to keep Pipeline alive in the middle of long calls.
	keepAlive int64
}

// Assert Pipeline is a train.Dataset.
var (
	_ train.Dataset      = (*Pipeline)(nil)
	_ train.HasShortName = (*Pipeline)(nil)
)

// New creates a Pipeline over the given elements, transformed by mapFn.
//
// Defaults: 1 epoch, batch size 32, parallelism runtime.NumCPU(), prefetch of 1 batch, shuffling enabled with
// a time based seed, float32 images. Change them with the configuration methods, and then call Start.
func New(name string, elements []Element, mapFn MapFn) *Pipeline {
	p := &Pipeline{
		name:      name,
		shortName: name,
		elements:  elements,
		mapFn:     mapFn,
		numEpochs: 1,
		batchSize: 32,
		prefetch:  1,
		shuffle:   true,
	}
	if len(name) > 3 {
		p.shortName = name[:3]
	}
	p.Parallelism(0)
	return p
}

// configurable checks that the pipeline has not been started yet.
func (p *Pipeline) configurable(method string) bool {
	if p.impl != nil {
		klog.Errorf("Pipeline.%s: invalid configuration change after Start has been called", method)
		return false
	}
	return true
}

// WithName sets the name of the pipeline, and optionally its short name (used in metrics).
//
// It returns the updated Pipeline, so calls can be cascaded.
func (p *Pipeline) WithName(name string, shortName ...string) *Pipeline {
	p.name = name
	if len(shortName) > 0 {
		p.shortName = shortName[0]
	}
	return p
}

// NumEpochs sets how many times the (re-shuffled) elements are repeated. It must be >= 1.
//
// It returns the updated Pipeline, so calls can be cascaded, or nil if the pipeline was already started.
func (p *Pipeline) NumEpochs(n int) *Pipeline {
	if !p.configurable("NumEpochs") {
		return nil
	}
	p.numEpochs = n
	return p
}

// BatchSize sets the number of samples per batch. The last batch of each epoch may be smaller.
//
// It returns the updated Pipeline, so calls can be cascaded, or nil if the pipeline was already started.
func (p *Pipeline) BatchSize(n int) *Pipeline {
	if !p.configurable("BatchSize") {
		return nil
	}
	p.batchSize = n
	return p
}

// Parallelism sets the maximum number of MapFn calls running at the same time.
// If n <= 0 it uses runtime.NumCPU().
//
// It returns the updated Pipeline, so calls can be cascaded, or nil if the pipeline was already started.
func (p *Pipeline) Parallelism(n int) *Pipeline {
	if !p.configurable("Parallelism") {
		return nil
	}
	if n <= 0 {
		n = runtime.NumCPU()
	}
	p.parallelism = n
	return p
}

// Prefetch sets the number of batches prepared ahead of the consumer. 0 means batches are only
// assembled when the consumer asks for them.
//
// It returns the updated Pipeline, so calls can be cascaded, or nil if the pipeline was already started.
func (p *Pipeline) Prefetch(n int) *Pipeline {
	if !p.configurable("Prefetch") {
		return nil
	}
	p.prefetch = n
	return p
}

// Shuffle enables or disables shuffling. When enabled each epoch is a new uniform permutation of
// all the elements, equivalent to a shuffle buffer the size of the dataset.
//
// It returns the updated Pipeline, so calls can be cascaded, or nil if the pipeline was already started.
func (p *Pipeline) Shuffle(shuffle bool) *Pipeline {
	if !p.configurable("Shuffle") {
		return nil
	}
	p.shuffle = shuffle
	return p
}

// Seed sets the seed for shuffling and for the random number generators given to MapFn.
// If 0 (the default) a time based seed is used.
//
// It returns the updated Pipeline, so calls can be cascaded, or nil if the pipeline was already started.
func (p *Pipeline) Seed(seed uint64) *Pipeline {
	if !p.configurable("Seed") {
		return nil
	}
	p.seed = seed
	return p
}

// Float16Images makes the images tensor be yielded as float16 instead of float32.
//
// It returns the updated Pipeline, so calls can be cascaded, or nil if the pipeline was already started.
func (p *Pipeline) Float16Images(enabled bool) *Pipeline {
	if !p.configurable("Float16Images") {
		return nil
	}
	p.float16Images = enabled
	return p
}

// Start validates the configuration and starts the goroutines producing batches.
//
// To avoid leaking goroutines, call Pipeline.Done when finished.
func (p *Pipeline) Start() (*Pipeline, error) {
	if p.impl != nil {
		return nil, errors.Errorf("Pipeline.Start called more than once for %q", p.name)
	}
	if p.mapFn == nil {
		return nil, errors.Errorf("pipeline %q has no MapFn", p.name)
	}
	if p.numEpochs < 1 {
		return nil, errors.Errorf("pipeline %q: number of epochs must be >= 1, got %d", p.name, p.numEpochs)
	}
	if p.batchSize < 1 {
		return nil, errors.Errorf("pipeline %q: batch size must be >= 1, got %d", p.name, p.batchSize)
	}
	if p.prefetch < 0 {
		return nil, errors.Errorf("pipeline %q: prefetch must be >= 0, got %d", p.name, p.prefetch)
	}
	if p.seed == 0 {
		p.seed = uint64(time.Now().UnixNano())
	}

	// If the Pipeline is garbage collected, stop all its goroutines.
	runtime.SetFinalizer(p, func(p *Pipeline) {
		if p.impl != nil {
			p.impl.stopAll()
			p.impl = nil
		}
	})
	p.startRun()
	return p, nil
}

// startRun creates a new pipelineImpl and starts its goroutines.
func (p *Pipeline) startRun() {
	config := runConfig{
		name:          p.name,
		elements:      p.elements,
		mapFn:         p.mapFn,
		numEpochs:     p.numEpochs,
		batchSize:     p.batchSize,
		parallelism:   p.parallelism,
		prefetch:      p.prefetch,
		shuffle:       p.shuffle,
		seed:          p.seed,
		run:           p.numRuns,
		float16Images: p.float16Images,
	}
	p.numRuns++
	klog.V(1).Infof("Pipeline %q: starting run #%d with %d elements, %d epochs, batch size %d, "+
		"parallelism %d, prefetch %d, shuffle %v, seed %d",
		p.name, config.run, len(p.elements), p.numEpochs, p.batchSize, p.parallelism, p.prefetch, p.shuffle, p.seed)
	p.impl = newPipelineImpl(config)
	p.impl.start()
}

// Name implements train.Dataset.
func (p *Pipeline) Name() string {
	return p.name
}

// ShortName implements train.HasShortName.
func (p *Pipeline) ShortName() string {
	return p.shortName
}

// UsedSeed returns the seed actually in use: the one configured with Seed or the time based one chosen by Start.
func (p *Pipeline) UsedSeed() uint64 {
	return p.seed
}

// BatchesPerEpoch returns the number of batches yielded per epoch.
func (p *Pipeline) BatchesPerEpoch() int {
	return BatchesPerEpoch(len(p.elements), p.batchSize)
}

// BatchesPerEpoch returns the number of batches in an epoch of numSamples, that is ceil(numSamples/batchSize).
func BatchesPerEpoch(numSamples, batchSize int) int {
	if batchSize <= 0 {
		return 0
	}
	return (numSamples + batchSize - 1) / batchSize
}

// Stats returns the counters of the current run, or of the last run if the pipeline is done.
func (p *Pipeline) Stats() Stats {
	if p.impl == nil {
		return p.lastStats
	}
	return p.impl.stats()
}

// Next returns the next batch: a map with the ImagesKey and LabelsKey tensors.
//
// Ownership of the tensors is transferred to the caller.
//
// After the last batch of the last epoch it returns ErrEndOfStream. If any stage of the pipeline failed,
// it returns that error, on this and all following calls.
func (p *Pipeline) Next() (map[string]*tensors.Tensor, error) {
	impl := p.impl
	if impl == nil {
		return nil, errors.Errorf("Pipeline.Next(%q) called before Start or after Done", p.name)
	}
	if err, failed := impl.failure.Value(); failed {
		return nil, err
	}
	var batch map[string]*tensors.Tensor
	var ok bool
	select {
	case batch, ok = <-impl.batches:
	case <-impl.failure.WaitChan():
		return nil, impl.failure.Wait()
	}
	if !ok {
		if err, failed := impl.failure.Value(); failed {
			return nil, err
		}
		return nil, ErrEndOfStream
	}

	// This no-op prevents `p` from being garbage collected and the goroutines killed in the middle
	// of the Next operation. Leave this at the end.
	p.keepAlive++
	return batch, nil
}

// Yield implements train.Dataset. It returns the images as the only input and the labels as the only label.
//
// At the end of the stream it returns io.EOF.
func (p *Pipeline) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	var batch map[string]*tensors.Tensor
	batch, err = p.Next()
	if err != nil {
		if err == ErrEndOfStream {
			err = io.EOF
		}
		return
	}
	inputs = []*tensors.Tensor{batch[ImagesKey]}
	labels = []*tensors.Tensor{batch[LabelsKey]}
	return
}

// Reset implements train.Dataset. It stops the current run, discarding any prefetched batches,
// and starts a new run from the first epoch, with a new shuffle.
func (p *Pipeline) Reset() {
	if p.impl == nil {
		klog.Warningf("Pipeline.Reset(%q) was called before Start or after Done", p.name)
		return
	}
	p.stopRun()
	p.startRun()

	// This no-op prevents `p` from being garbage collected and the goroutines killed in the middle
	// of the Reset operation. Leave this at the end.
	p.keepAlive++
}

// Done stops all goroutines of the pipeline and waits for them to finish. Prefetched batches are discarded.
//
// After Done, Next returns an error.
func (p *Pipeline) Done() {
	if p.impl == nil {
		return
	}
	p.stopRun()
}

// stopRun stops the current run and waits for its goroutines to exit.
func (p *Pipeline) stopRun() {
	impl := p.impl
	p.impl = nil
	impl.stopAll()
	impl.done.Wait()
	for batch := range impl.batches {
		finalizeBatch(batch)
	}
	p.lastStats = impl.stats()
	klog.V(1).Infof("Pipeline %q: run stopped after %d samples, %d batches, %d epochs",
		p.name, p.lastStats.Samples, p.lastStats.Batches, p.lastStats.Epochs)
}

// finalizeBatch frees the tensors of a batch that was never handed to a consumer.
func finalizeBatch(batch map[string]*tensors.Tensor) {
	for _, t := range batch {
		if t != nil {
			t.FinalizeAll()
		}
	}
}
