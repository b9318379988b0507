// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// signs_inspect runs the SIGNS input pipeline over a directory of images and reports on it:
// class counts, batches, throughput and, optionally, a label histogram and a preview of the first batch.
//
// Hyperparameters are set with -set, e.g.:
//
//	signs_inspect -data ~/work/signs/train_signs -set "batch_size=16;num_epochs=1" -preview /tmp/signs
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/signs/pkg/pipeline"
	"github.com/gomlx/signs/pkg/signs"
	"github.com/google/uuid"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

var (
	flagDataDir = flag.String("data", "~/work/signs/train_signs",
		"Directory with the SIGNS JPEG files, named \"{label}_IMG_{id}.jpg\".")
	flagMaxBatches = flag.Int("max_batches", 0, "Maximum number of batches to pull. 0 pulls all of them.")
	flagPreview    = flag.String("preview", "",
		"Directory where to save a contact sheet of the first batch (in a sub-directory named after the run id). "+
			"Empty disables it.")
	flagHistogram = flag.String("histogram", "", "File path where to save a histogram of the labels. Empty disables it.")
	flagEval      = flag.Bool("eval", false,
		"Inspect the evaluation split (see eval_fraction), without augmentation or shuffling.")
)

// inspection holds what was observed while pulling batches.
type inspection struct {
	numBatches, numSamples int
	numBytes               uint64
	elapsed                time.Duration
	previewPath            string
}

func main() {
	ctx := signs.CreateDefaultContext()
	settings := commandline.CreateContextSettingsFlag(ctx, "")
	klog.InitFlags(nil)
	flag.Parse()

	paramsSet := must.M1(commandline.ParseContextSettings(ctx, *settings))
	params := must.M1(signs.ParamsFromContext(ctx))
	runID := uuid.NewString()
	klog.Infof("signs_inspect run %s", runID)
	if len(paramsSet) > 0 {
		fmt.Println(commandline.SprintModifiedContextSettings(ctx, paramsSet))
	}

	dataDir := must.M1(fsutil.ReplaceTildeInDir(*flagDataDir))
	if !must.M1(fsutil.FileExists(dataDir)) {
		klog.Fatalf("Data directory %q doesn't exist, see -data.", dataDir)
	}
	allPaths := must.M1(signs.ListImages(dataDir))
	trainPaths, evalPaths, err := signs.SplitTrainEval(allPaths, params.EvalFraction, params.Seed)
	must.M(err)
	split, paths := "train", trainPaths
	if *flagEval {
		split, paths = "eval", evalPaths
		params = params.EvalParams()
	}
	if len(paths) == 0 {
		klog.Fatalf("No images for the %s split in %q (%d files in total, eval_fraction=%g).",
			split, dataDir, len(allPaths), params.EvalFraction)
	}
	labels := must.M1(signs.LabelsFromPaths(paths))
	counts := signs.ClassCounts(labels)

	if *flagHistogram != "" {
		histogramPath := must.M1(fsutil.ReplaceTildeInDir(*flagHistogram))
		must.M(writeHistogram(histogramPath, fmt.Sprintf("SIGNS %s: %d files", split, len(paths)), counts))
		klog.Infof("Histogram of labels saved to %q", histogramPath)
	}

	p := must.M1(signs.InputFn(paths, params))
	defer p.Done()
	result := inspect(p, params, runID)

	fmt.Println(titleStyle.Render("Classes"))
	fmt.Println(classesTable(counts))
	fmt.Println(titleStyle.Render("Summary"))
	fmt.Println(summaryTable(runID, dataDir, split, len(paths), params, p.Stats(), result))
}

// inspect pulls batches from p until the end of the stream or -max_batches, with a progress bar.
func inspect(p *pipeline.Pipeline, params signs.Params, runID string) (result inspection) {
	total := p.BatchesPerEpoch() * params.NumEpochs
	if *flagMaxBatches > 0 && *flagMaxBatches < total {
		total = *flagMaxBatches
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Batches"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("batches"),
		progressbar.OptionSetTheme(progressbar.ThemeUnicode),
	)
	start := time.Now()
	for result.numBatches < total {
		batch, err := p.Next()
		if err == pipeline.ErrEndOfStream {
			break
		}
		must.M(err)
		if result.numBatches == 0 && *flagPreview != "" {
			images := must.M1(batchImages(batch, params.Float16Images()))
			batchLabels := tensors.MustCopyFlatData[int32](batch[pipeline.LabelsKey])
			previewDir := must.M1(fsutil.ReplaceTildeInDir(*flagPreview))
			result.previewPath = must.M1(writePreview(previewDir, runID, images, batchLabels))
		}
		result.numBatches++
		result.numSamples += batch[pipeline.LabelsKey].Shape().Dimensions[0]
		for _, t := range batch {
			result.numBytes += uint64(t.Shape().Memory())
			t.FinalizeAll()
		}
		_ = bar.Add(1)
	}
	result.elapsed = time.Since(start)
	_ = bar.Close()
	fmt.Fprintln(os.Stderr)
	return
}
