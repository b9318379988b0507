// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package signs

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"3_IMG_2.jpg", "0_IMG_9.JPG", "1_IMG_5.jpeg", "notes.txt", ".2_IMG_1.jpg", "4_IMG_1.png"} {
		must.M(os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	must.M(os.Mkdir(filepath.Join(dir, "5_IMG_dir.jpg"), 0o755))

	paths, err := ListImages(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "0_IMG_9.JPG"),
		filepath.Join(dir, "1_IMG_5.jpeg"),
		filepath.Join(dir, "3_IMG_2.jpg"),
	}, paths)

	_, err = ListImages(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSplitTrainEval(t *testing.T) {
	paths := make([]string, 20)
	for ii := range paths {
		paths[ii] = filepath.Join("data", string(rune('a'+ii))+".jpg")
	}
	train, eval, err := SplitTrainEval(paths, 0.25, 3)
	require.NoError(t, err)
	assert.Len(t, eval, 5)
	assert.Len(t, train, 15)
	all := slices.Concat(train, eval)
	slices.Sort(all)
	assert.Equal(t, paths, all, "every path lands in exactly one set")
	assert.True(t, slices.IsSorted(train))
	assert.True(t, slices.IsSorted(eval))

	// Same seed, same split.
	train2, eval2, err := SplitTrainEval(paths, 0.25, 3)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, eval, eval2)

	// No eval fraction: everything is train.
	train, eval, err = SplitTrainEval(paths, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, paths, train)
	assert.Empty(t, eval)

	_, _, err = SplitTrainEval(paths, 1, 3)
	assert.Error(t, err)
	_, _, err = SplitTrainEval(paths, -0.1, 3)
	assert.Error(t, err)
}
