package journal

import (
	"os"

	"github.com/golang/snappy"
	"github.com/gofrs/flock"

	"github.com/dreamware/molap/internal/molaperr"
)

// SaveSnapshot writes a new snapshot file under a cross-process file
// lock (guarding against a concurrent save from another engine
// instance sharing the same data directory), building it in a temp file
// and renaming into place so a reader never observes a partial write.
// write is called once with a FileWriter positioned at the start of the
// temp file; it should call Section/Comment/Field/... to emit the
// snapshot's [SECTION] blocks.
func SaveSnapshot(path string, write func(*FileWriter) error) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return molaperr.Wrap(molaperr.KindResource, "SaveSnapshot", err)
	}
	defer lock.Unlock()

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return molaperr.Wrap(molaperr.KindResource, "SaveSnapshot", err)
	}

	fw := NewFileWriter(f)
	if err := write(fw); err != nil {
		fw.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := fw.Close(); err != nil {
		os.Remove(tmpPath)
		return molaperr.Wrap(molaperr.KindResource, "SaveSnapshot", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return molaperr.Wrap(molaperr.KindResource, "SaveSnapshot", err)
	}
	return nil
}

// ArchiveJournal snappy-compresses a rotated journal file into
// path+".snappy" for cold storage, returning the archive's path.
// Callers decide whether to delete the original afterward.
func ArchiveJournal(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", molaperr.Wrap(molaperr.KindResource, "ArchiveJournal", err)
	}
	compressed := snappy.Encode(nil, data)
	archivePath := path + ".snappy"
	if err := os.WriteFile(archivePath, compressed, 0o644); err != nil {
		return "", molaperr.Wrap(molaperr.KindResource, "ArchiveJournal", err)
	}
	return archivePath, nil
}

// ReadArchivedJournal decompresses a snappy-archived journal back to its
// original bytes, for replay.
func ReadArchivedJournal(archivePath string) ([]byte, error) {
	compressed, err := os.ReadFile(archivePath)
	if err != nil {
		return nil, molaperr.Wrap(molaperr.KindResource, "ReadArchivedJournal", err)
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, molaperr.Wrap(molaperr.KindResource, "ReadArchivedJournal", err)
	}
	return data, nil
}
