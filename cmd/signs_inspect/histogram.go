// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gomlx/signs/pkg/signs"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// writeHistogram saves a bar chart with the number of files per class to filePath.
// The image format is taken from the file extension (e.g. ".png", ".svg").
func writeHistogram(filePath, title string, counts [signs.NumClasses]int) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "label"
	p.Y.Label.Text = "# files"

	values := make(plotter.Values, len(counts))
	names := make([]string, len(counts))
	for label, count := range counts {
		values[label] = float64(count)
		names[label] = fmt.Sprintf("%d", label)
	}
	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return errors.Wrap(err, "failed to create histogram bar chart")
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)

	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory for histogram %q", filePath)
		}
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, filePath); err != nil {
		return errors.Wrapf(err, "failed to save histogram to %q", filePath)
	}
	return nil
}
