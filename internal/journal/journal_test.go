package journal_test

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/molap/internal/journal"
)

func TestEscapeFieldRoundTripsQuotesAndSeparators(t *testing.T) {
	in := `has a "quote" and a ; semicolon`
	esc := journal.EscapeField(in)
	require.Equal(t, in, journal.UnescapeField(esc))
}

func TestSplitFieldsRespectsQuotedSeparators(t *testing.T) {
	line := journal.EscapeField("a;b") + ";" + "42;"
	line = strings.TrimSuffix(line, ";")
	fields := journal.SplitFields(line)
	require.Len(t, fields, 2)
	require.Equal(t, "a;b", journal.UnescapeField(fields[0]))
	require.Equal(t, "42", fields[1])
}

func TestFileWriterAndReaderRoundTripASnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.csv")

	f, err := os.Create(path)
	require.NoError(t, err)
	fw := journal.NewFileWriter(f)
	fw.Comment("generated for test")
	fw.Section("DIMENSION")
	fw.Integer(1)
	fw.Field("Products")
	fw.IntList([]int64{0, 1, 2})
	fw.EndLine()
	fw.Field(`a "quoted" name`)
	fw.Integer(7)
	fw.EndLine()
	require.NoError(t, fw.Close())

	r, err := os.Open(path)
	require.NoError(t, err)
	defer r.Close()
	reader := journal.NewReader(r)

	var lines []journal.Line
	for {
		line, err := reader.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		lines = append(lines, line)
	}

	require.Equal(t, journal.LineComment, lines[0].Kind)
	require.Equal(t, "generated for test", lines[0].Comment)

	require.Equal(t, journal.LineSection, lines[1].Kind)
	require.Equal(t, "DIMENSION", lines[1].Section)

	require.Equal(t, journal.LineRecord, lines[2].Kind)
	require.Equal(t, []string{"1", "Products", "0,1,2"}, lines[2].Fields)

	require.Equal(t, journal.LineRecord, lines[3].Kind)
	require.Equal(t, `a "quoted" name`, lines[3].Fields[0])
	require.Equal(t, "7", lines[3].Fields[1])
}

func TestParseIntList(t *testing.T) {
	out, err := journal.ParseIntList("1,2,3")
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, out)

	empty, err := journal.ParseIntList("")
	require.NoError(t, err)
	require.Nil(t, empty)
}

func TestParseEscapedListHandlesCommaInsideQuotes(t *testing.T) {
	field := journal.EscapeField("a,b") + "," + journal.EscapeField("c")
	out := journal.ParseEscapedList(field)
	require.Equal(t, []string{"a,b", "c"}, out)
}

func TestCommandWriterAppendsReadableLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.csv")
	cw := journal.NewCommandWriter(path, 100<<20)
	require.NoError(t, cw.Append("SET_CELL", "1;2;3;42.0;"))
	require.NoError(t, cw.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "SET_CELL")
	require.Contains(t, string(data), "1;2;3;42.0;")
}

func TestSaveSnapshotWritesAtomicallyUnderLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.csv")

	err := journal.SaveSnapshot(path, func(fw *journal.FileWriter) error {
		fw.Section("DIMENSION")
		fw.Integer(1)
		fw.EndLine()
		return nil
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "[DIMENSION]")

	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestArchiveJournalRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.csv")
	require.NoError(t, os.WriteFile(path, []byte("1700000000.000000;SET_CELL;1;2;3;\n"), 0o644))

	archivePath, err := journal.ArchiveJournal(path)
	require.NoError(t, err)
	require.FileExists(t, archivePath)

	restored, err := journal.ReadArchivedJournal(archivePath)
	require.NoError(t, err)
	require.Equal(t, "1700000000.000000;SET_CELL;1;2;3;\n", string(restored))
}
