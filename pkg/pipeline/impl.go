// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/gomlx/compute/dtypes/float16"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/signs/internal/workerspool"
	"github.com/gomlx/signs/internal/xsync"
	"github.com/gomlx/signs/pkg/imageops"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// runConfig is a frozen copy of the Pipeline configuration for one run.
type runConfig struct {
	name                                        string
	elements                                    []Element
	mapFn                                       MapFn
	numEpochs, batchSize, parallelism, prefetch int
	shuffle                                     bool
	seed, run                                   uint64
	float16Images                               bool
}

// job is one element scheduled for the map stage. seq is its global position in the run.
type job struct {
	seq         uint64
	epoch       int
	lastOfEpoch bool
	elem        Element
}

// result of the map stage for a job.
type result struct {
	job
	sample Sample
	err    error
}

// pipelineImpl holds the goroutines and channels of one run. It doesn't point back to the Pipeline,
// so the Pipeline can be garbage collected and its finalizer can stop the run.
type pipelineImpl struct {
	config runConfig
	pool   *workerspool.Pool

	results chan result
	batches chan map[string]*tensors.Tensor

	// window holds one token per scheduled element not yet consumed in order, bounding how far
	// ahead of the slowest element the map stage can run.
	window chan struct{}

	stop    *xsync.Latch
	failure *xsync.LatchWithValue[error]
	done    *xsync.Latch

	numSamples, numBatches, numEpochs atomic.Int64
}

func newPipelineImpl(config runConfig) *pipelineImpl {
	return &pipelineImpl{
		config:  config,
		pool:    workerspool.New(config.parallelism),
		results: make(chan result, config.parallelism),
		batches: make(chan map[string]*tensors.Tensor, config.prefetch),
		window:  make(chan struct{}, 2*config.parallelism),
		stop:    xsync.NewLatch(),
		failure: xsync.NewLatchWithValue[error](),
		done:    xsync.NewLatch(),
	}
}

// start the producer and the batch assembler goroutines. impl.done is triggered once both have exited.
func (impl *pipelineImpl) start() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		impl.produce()
	}()
	go func() {
		defer wg.Done()
		impl.assembleBatches()
	}()
	go func() {
		wg.Wait()
		impl.done.Trigger()
	}()
}

// stopAll signals every goroutine of the run to exit. It doesn't wait.
func (impl *pipelineImpl) stopAll() {
	impl.stop.Trigger()
	impl.pool.Wake()
}

// fail records the first error of the run and stops it.
func (impl *pipelineImpl) fail(err error) {
	if impl.failure.Trigger(err) {
		klog.Errorf("Pipeline %q failed: %+v", impl.config.name, err)
	}
	impl.stopAll()
}

func (impl *pipelineImpl) stats() Stats {
	return Stats{
		Samples: impl.numSamples.Load(),
		Batches: impl.numBatches.Load(),
		Epochs:  impl.numEpochs.Load(),
	}
}

// epochOrder returns the order in which the elements are visited in the given epoch.
func (impl *pipelineImpl) epochOrder(epoch int) []int {
	n := len(impl.config.elements)
	if !impl.config.shuffle {
		order := make([]int, n)
		for ii := range order {
			order[ii] = ii
		}
		return order
	}
	rng := rand.New(rand.NewPCG(impl.config.seed, impl.config.run<<32|uint64(epoch)))
	return rng.Perm(n)
}

// sampleRNG returns the random number generator given to MapFn for the element at position seq of the run.
func (impl *pipelineImpl) sampleRNG(seq uint64) *rand.Rand {
	return rand.New(rand.NewPCG(impl.config.seed^0x9e3779b97f4a7c15, impl.config.run<<40|seq))
}

// produce walks the epochs and schedules each element in the worker pool. It closes impl.results once
// all scheduled jobs have finished.
func (impl *pipelineImpl) produce() {
	defer func() {
		impl.pool.Wait()
		close(impl.results)
	}()
	elements := impl.config.elements
	var seq uint64
	for epoch := range impl.config.numEpochs {
		for pos, idx := range impl.epochOrder(epoch) {
			j := job{seq: seq, epoch: epoch, lastOfEpoch: pos == len(elements)-1, elem: elements[idx]}
			seq++
			select {
			case impl.window <- struct{}{}:
			case <-impl.stop.WaitChan():
				return
			}
			if !impl.pool.WaitToStart(impl.stop.WaitChan(), func() { impl.process(j) }) {
				return
			}
		}
	}
}

// process runs MapFn on a job and sends the result downstream. Panics are converted to errors.
func (impl *pipelineImpl) process(j job) {
	r := result{job: j}
	exception := exceptions.Try(func() {
		r.sample, r.err = impl.config.mapFn(j.elem, impl.sampleRNG(j.seq))
	})
	if exception != nil {
		if err, ok := exception.(error); ok {
			r.err = errors.WithMessagef(err, "panic while processing %q", j.elem.Path)
		} else {
			r.err = errors.Errorf("panic while processing %q: %v", j.elem.Path, exception)
		}
	} else if r.err == nil && r.sample.Image == nil {
		r.err = errors.Errorf("processing %q returned no image", j.elem.Path)
	}
	select {
	case impl.results <- r:
	case <-impl.stop.WaitChan():
	}
}

// assembleBatches restores the order of the results and groups them into batches, flushing at the
// end of each epoch. It closes impl.batches when it exits.
func (impl *pipelineImpl) assembleBatches() {
	defer close(impl.batches)
	pending := make(map[uint64]result)
	var next uint64
	current := make([]Sample, 0, impl.config.batchSize)
	for {
		var r result
		var ok bool
		select {
		case r, ok = <-impl.results:
		case <-impl.stop.WaitChan():
			return
		}
		if !ok {
			if len(current) > 0 {
				impl.emit(current)
			}
			return
		}
		if r.err != nil {
			impl.fail(r.err)
			return
		}
		pending[r.seq] = r
		for {
			r, found := pending[next]
			if !found {
				break
			}
			delete(pending, next)
			next++
			<-impl.window
			current = append(current, r.sample)
			impl.numSamples.Add(1)
			if len(current) < impl.config.batchSize && !r.lastOfEpoch {
				continue
			}
			if !impl.emit(current) {
				return
			}
			current = make([]Sample, 0, impl.config.batchSize)
			if r.lastOfEpoch {
				impl.numEpochs.Add(1)
				klog.V(1).Infof("Pipeline %q: epoch %d assembled", impl.config.name, r.epoch)
			}
		}
	}
}

// emit builds the tensors of a batch and hands it to the prefetch buffer. It returns false if the run
// was stopped or failed.
func (impl *pipelineImpl) emit(samples []Sample) bool {
	var batch map[string]*tensors.Tensor
	var err error
	exception := exceptions.Try(func() {
		batch, err = buildBatch(samples, impl.config.float16Images)
	})
	if exception != nil {
		err = errors.Errorf("failed to build batch: %v", exception)
	}
	if err != nil {
		impl.fail(err)
		return false
	}
	select {
	case impl.batches <- batch:
		impl.numBatches.Add(1)
		klog.V(2).Infof("Pipeline %q: batch #%d with %d samples", impl.config.name, impl.numBatches.Load(), len(samples))
		return true
	case <-impl.stop.WaitChan():
		finalizeBatch(batch)
		return false
	}
}

// buildBatch stacks the samples into an images tensor shaped [batch, height, width, 3] and a labels tensor
// shaped [batch]. All images must have the same shape.
func buildBatch(samples []Sample, float16Images bool) (map[string]*tensors.Tensor, error) {
	if len(samples) == 0 {
		return nil, errors.New("empty batch")
	}
	first := samples[0].Image
	height, width := first.Height, first.Width
	imageSize := first.Size()
	flat := make([]float32, 0, len(samples)*imageSize)
	labels := make([]int32, len(samples))
	for ii, sample := range samples {
		img := sample.Image
		if img.Height != height || img.Width != width || len(img.Pix) != imageSize {
			return nil, errors.Errorf("sample %d of the batch has shape %v, but the first has shape %v",
				ii, img.Shape(), first.Shape())
		}
		flat = append(flat, img.Pix...)
		labels[ii] = sample.Label
	}
	dims := []int{len(samples), height, width, imageops.Channels}
	var images *tensors.Tensor
	if float16Images {
		half := make([]float16.Float16, len(flat))
		for ii, v := range flat {
			half[ii] = float16.FromFloat32(v)
		}
		images = tensors.FromFlatDataAndDimensions(half, dims...)
	} else {
		images = tensors.FromFlatDataAndDimensions(flat, dims...)
	}
	return map[string]*tensors.Tensor{
		ImagesKey: images,
		LabelsKey: tensors.FromFlatDataAndDimensions(labels, len(samples)),
	}, nil
}

// String implements fmt.Stringer, for logging.
func (s Stats) String() string {
	return fmt.Sprintf("%d samples, %d batches, %d epochs", s.Samples, s.Batches, s.Epochs)
}
