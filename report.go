package sfs

import (
	"os"

	"github.com/gocarina/gocsv"
)

// DirEntryReport is one row of a directory listing exported to CSV: the
// flattened, human-readable form of a DirEntry plus its resolved stat.
type DirEntryReport struct {
	Name      string `csv:"name"`
	DescrID   int32  `csv:"descr_id"`
	Type      string `csv:"type"`
	SizeBytes int32  `csv:"size_bytes"`
	LinksNum  int32  `csv:"links_num"`
	BlocksNum int    `csv:"blocks_num"`
}

func typeName(t Type) string {
	switch t {
	case TypeDir:
		return "dir"
	case TypeFile:
		return "file"
	case TypeLink:
		return "link"
	default:
		return "free"
	}
}

// DirReport builds the CSV rows describing every entry of the directory at
// path.
func (fs *FileSystem) DirReport(path string) ([]DirEntryReport, error) {
	entries, err := fs.List(path)
	if err != nil {
		return nil, err
	}

	rows := make([]DirEntryReport, 0, len(entries))
	for _, entry := range entries {
		stat, err := fs.FileStat(entry.ID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, DirEntryReport{
			Name:      entry.Name,
			DescrID:   int32(entry.ID),
			Type:      typeName(stat.Type),
			SizeBytes: stat.Size,
			LinksNum:  stat.LinksNum,
			BlocksNum: stat.BlocksNum,
		})
	}
	return rows, nil
}

// WriteDirCSV writes a directory's report as CSV to w.
func (fs *FileSystem) WriteDirCSV(path string, w *os.File) error {
	rows, err := fs.DirReport(path)
	if err != nil {
		return err
	}
	return gocsv.MarshalFile(&rows, w)
}
