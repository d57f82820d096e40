package views

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trigger-capture/models"
)

func TestCSVWriterHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.csv")
	w, err := NewCSVWriter(path, 0, true, models.Frame{}.CSVHeader())
	require.NoError(t, err)

	w.WriteRecord(&models.Frame{NFrame: 1, AcqNFrame: 11, TimestampRaw: 1000, ExposureUs: 2000})
	w.WriteRecord(&models.Frame{NFrame: 2, AcqNFrame: 12, TimestampRaw: 3500, ExposureUs: 2000})
	assert.Equal(t, uint64(2), w.Rows())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"nframe,acq_nframe,timestamp_raw,exposure_time\n1,11,1000,2000\n2,12,3500,2000\n",
		string(data))
}

func TestCSVWriterRefusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.csv")
	require.NoError(t, os.WriteFile(path, []byte("keep me\n"), 0644))

	_, err := NewCSVWriter(path, 0, true, []string{"a"})
	assert.ErrorIs(t, err, os.ErrExist)

	data, _ := os.ReadFile(path)
	assert.Equal(t, "keep me\n", string(data))
}

func TestAppendCSVWriterWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "windows.csv")
	header := []string{"a", "b"}

	for _, row := range [][]string{{"1", "2"}, {"3", "4"}} {
		w, err := AppendCSVWriter(path, 128, header)
		require.NoError(t, err)
		w.WriteRow(row)
		require.NoError(t, w.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n3,4\n", string(data))
}

func TestCSVWriterConcurrentRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.csv")
	w, err := NewCSVWriter(path, 64, false, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				w.WriteRow([]string{"x", "y"})
			}
		}()
	}
	wg.Wait()
	require.NoError(t, w.Close())
	assert.Equal(t, uint64(800), w.Rows())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 800*len("x,y\n"))
}

func TestSchemaMatchesModels(t *testing.T) {
	assert.Equal(t, SchemaColumns[FileMetadata], models.Frame{}.CSVHeader())
	assert.Equal(t, SchemaColumns[FileWindows], models.WindowRecord{}.CSVHeader())
	assert.Equal(t, "metadata.csv", FileMetadata.FileName())
	assert.Equal(t, "windows.csv", FileWindows.FileName())
}
