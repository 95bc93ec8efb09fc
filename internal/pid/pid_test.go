package pid_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"codeberg.org/mutker/iiocapture/internal/errors"
	"codeberg.org/mutker/iiocapture/internal/pid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/run", "iiocapture-iio_device0.pid"), pid.Path("/run", "iio:device0"))
	assert.Equal(t, filepath.Join(os.TempDir(), "iiocapture-ina226.pid"), pid.Path("", "ina226"))
}

func TestAcquireRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := pid.Acquire(dir, "ina226")
	require.NoError(t, err)

	data, err := os.ReadFile(pid.Path(dir, "ina226"))
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	_, err = pid.Acquire(dir, "ina226")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))

	other, err := pid.Acquire(dir, "ina219")
	require.NoError(t, err)
	require.NoError(t, other.Release())

	require.NoError(t, lock.Release())
	assert.NoFileExists(t, pid.Path(dir, "ina226"))
	assert.NoError(t, lock.Release())

	lock, err = pid.Acquire(dir, "ina226")
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

func TestAcquireReplacesStaleFile(t *testing.T) {
	dir := t.TempDir()

	for _, content := range []string{"not a pid", "-3", "999999999"} {
		require.NoError(t, os.WriteFile(pid.Path(dir, "ina226"), []byte(content), 0o600))

		lock, err := pid.Acquire(dir, "ina226")
		require.NoError(t, err, content)
		require.NoError(t, lock.Release())
	}
}
