// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/signs/pkg/pipeline"
	"github.com/gomlx/signs/pkg/signs"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
	headerStyle = lipgloss.NewStyle().Reverse(true).Padding(0, 2, 0, 2).Align(lipgloss.Center)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	cellStyle   = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)

	// missingClassStyle highlights labels without any file: the model would never see them.
	missingClassStyle = cellStyle.
				Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"}).
				Bold(true)
)

// classRows returns one row per label: the label, its number of files and its share of the total.
func classRows(counts [signs.NumClasses]int) [][]string {
	var total int
	for _, count := range counts {
		total += count
	}
	rows := make([][]string, len(counts))
	for label, count := range counts {
		share := 0.0
		if total > 0 {
			share = 100 * float64(count) / float64(total)
		}
		rows[label] = []string{fmt.Sprintf("%d", label), humanize.Comma(int64(count)), fmt.Sprintf("%.1f%%", share)}
	}
	return rows
}

// classesTable renders the class counts, with missing labels highlighted.
func classesTable(counts [signs.NumClasses]int) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row < 0 {
				return headerStyle
			}
			if row < len(counts) && counts[row] == 0 {
				return missingClassStyle.Align(lipgloss.Right)
			}
			return cellStyle.Faint(row%2 == 1).Align(lipgloss.Right)
		}).
		Headers("label", "# files", "share").
		Rows(classRows(counts)...)
}

// summaryRows lists the configuration and the measurements of the run, as (name, value) rows.
func summaryRows(runID, dataDir, split string, numFiles int, params signs.Params, stats pipeline.Stats,
	result inspection) [][]string {
	rows := [][]string{
		{"run id", runID},
		{"data", dataDir},
		{"split", split},
		{"# files", humanize.Comma(int64(numFiles))},
		{"batch size", humanize.Comma(int64(params.BatchSize))},
		{"image size", fmt.Sprintf("%dx%d (%s, %s)", params.ImageSize, params.ImageSize,
			params.ResizeFilter, params.ImagesDType)},
		{"augment / shuffle", fmt.Sprintf("%v / %v", params.Augment, params.Shuffle)},
		{"# batches", humanize.Comma(int64(result.numBatches))},
		{"# samples", humanize.Comma(int64(result.numSamples))},
		{"# epochs completed", humanize.Comma(stats.Epochs)},
		{"bytes yielded", humanize.Bytes(result.numBytes)},
		{"elapsed", result.elapsed.Round(time.Millisecond).String()},
	}
	if seconds := result.elapsed.Seconds(); seconds > 0 {
		rows = append(rows, []string{"throughput", fmt.Sprintf("%s samples/s, %s/s",
			humanize.CommafWithDigits(float64(result.numSamples)/seconds, 1),
			humanize.Bytes(uint64(float64(result.numBytes)/seconds)))})
	}
	if result.previewPath != "" {
		rows = append(rows, []string{"preview", result.previewPath})
	}
	return rows
}

// summaryTable renders summaryRows with the names right aligned.
func summaryTable(runID, dataDir, split string, numFiles int, params signs.Params, stats pipeline.Stats,
	result inspection) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := cellStyle.Faint(row%2 == 1)
			if col == 0 {
				return s.Align(lipgloss.Right)
			}
			return s.Align(lipgloss.Left)
		}).
		Rows(summaryRows(runID, dataDir, split, numFiles, params, stats, result)...)
}
