// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"
	"time"

	"github.com/gomlx/signs/pkg/pipeline"
	"github.com/gomlx/signs/pkg/signs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassRows(t *testing.T) {
	rows := classRows([signs.NumClasses]int{10, 0, 5, 5, 0, 20})
	require.Len(t, rows, signs.NumClasses)
	assert.Equal(t, []string{"0", "10", "25.0%"}, rows[0])
	assert.Equal(t, []string{"1", "0", "0.0%"}, rows[1])
	assert.Equal(t, []string{"5", "20", "50.0%"}, rows[5])

	// No files at all: shares are 0 instead of NaN.
	rows = classRows([signs.NumClasses]int{})
	assert.Equal(t, []string{"3", "0", "0.0%"}, rows[3])
}

func TestClassesTable(t *testing.T) {
	rendered := classesTable([signs.NumClasses]int{1200, 0, 3, 4, 5, 6}).String()
	assert.Contains(t, rendered, "label")
	assert.Contains(t, rendered, "1,200")
	assert.Contains(t, rendered, "share")
}

func TestSummaryRows(t *testing.T) {
	params := signs.DefaultParams()
	rows := summaryRows("id", "/data", "train", 12, params, pipeline.Stats{Samples: 16, Batches: 2, Epochs: 1},
		inspection{numBatches: 1, numSamples: 12, numBytes: 2048})
	values := make(map[string]string, len(rows))
	for _, row := range rows {
		require.Len(t, row, 2)
		values[row[0]] = row[1]
	}
	assert.Equal(t, "id", values["run id"])
	assert.Equal(t, "train", values["split"])
	assert.Equal(t, "224x224 (bilinear, float32)", values["image size"])
	// Counts are what was pulled, not what the pipeline prefetched.
	assert.Equal(t, "1", values["# batches"])
	assert.Equal(t, "12", values["# samples"])
	assert.Equal(t, "1", values["# epochs completed"])
	assert.Equal(t, "2.0 kB", values["bytes yielded"])
	assert.NotContains(t, values, "throughput", "no throughput without elapsed time")
	assert.NotContains(t, values, "preview")

	rows = summaryRows("id", "/data", "eval", 12, params.EvalParams(), pipeline.Stats{},
		inspection{numBatches: 2, numSamples: 12, numBytes: 4096, elapsed: 2 * time.Second, previewPath: "/tmp/p.png"})
	values = make(map[string]string, len(rows))
	for _, row := range rows {
		values[row[0]] = row[1]
	}
	assert.Equal(t, "6 samples/s, 2.0 kB/s", values["throughput"])
	assert.Equal(t, "/tmp/p.png", values["preview"])
	assert.Equal(t, "false / false", values["augment / shuffle"])

	rendered := summaryTable("id", "/data", "train", 12, params, pipeline.Stats{}, inspection{}).String()
	assert.Contains(t, rendered, "run id")
}
