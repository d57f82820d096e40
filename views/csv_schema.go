package views

// Column layouts for every CSV this node writes. The models' CSVHeader
// methods produce the headers; this table is the reference they are checked
// against in tests.

// FileKind identifies an output CSV.
type FileKind int

const (
	FileMetadata FileKind = iota // per-window metadata.csv
	FileWindows                  // session index windows.csv
)

var fileNames = map[FileKind]string{
	FileMetadata: "metadata.csv",
	FileWindows:  "windows.csv",
}

func (k FileKind) String() string {
	if n, ok := fileNames[k]; ok {
		return n
	}
	return "unknown"
}

// FileName returns the on-disk name of the CSV.
func (k FileKind) FileName() string { return k.String() }

// SchemaColumns returns the canonical column list for each file.
var SchemaColumns = map[FileKind][]string{
	FileMetadata: {"nframe", "acq_nframe", "timestamp_raw", "exposure_time"},
	FileWindows: {
		"session_id", "obj_id", "frame", "trigger_timestamp",
		"n_frames", "n_before", "partial", "done_ns", "dir",
	},
}
