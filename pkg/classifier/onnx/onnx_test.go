package onnx

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingModel(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nids_rf_model.onnx"), "", 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
