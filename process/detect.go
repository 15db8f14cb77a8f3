package process

import (
	"bytes"
	"io"
	"os"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
)

// sniffLen is how much of the file we look at to detect its type.
const sniffLen = 1024

var typeHTML = filetype.NewType("html", "text/html")

func init() {
	filetype.AddMatcher(typeHTML, isHTML)
}

var htmlSignatures = [][]byte{
	[]byte("<!doctype html"),
	[]byte("<html"),
	[]byte("<head"),
	[]byte("<body"),
}

// isHTML looks for familiar markup at the beginning of the buffer skipping
// BOM, whitespace and comments.
func isHTML(buf []byte) bool {
	buf = bytes.TrimPrefix(buf, []byte("\xef\xbb\xbf"))
	for {
		buf = bytes.TrimLeft(buf, " \t\r\n")
		if !bytes.HasPrefix(buf, []byte("<!--")) {
			break
		}
		end := bytes.Index(buf, []byte("-->"))
		if end < 0 {
			return false
		}
		buf = buf[end+3:]
	}
	if bytes.HasPrefix(buf, []byte("<?xml")) {
		return bytes.Contains(bytes.ToLower(buf), []byte("<html"))
	}
	lower := bytes.ToLower(buf[:min(len(buf), 32)])
	for _, sig := range htmlSignatures {
		if bytes.HasPrefix(lower, sig) {
			return true
		}
	}
	return false
}

func sniff(r io.Reader) (types.Type, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return types.Unknown, err
	}
	return filetype.Match(head[:n])
}

func sniffFile(path string) (types.Type, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Unknown, err
	}
	defer f.Close()
	return sniff(f)
}

// isArchiveFile checks if file is zip archive.
func isArchiveFile(path string) (bool, error) {
	kind, err := sniffFile(path)
	if err != nil {
		return false, err
	}
	return kind.Extension == "zip", nil
}

// isPageFile checks if file looks like HTML page.
func isPageFile(path string) (bool, error) {
	kind, err := sniffFile(path)
	if err != nil {
		return false, err
	}
	return kind == typeHTML, nil
}

// isPageReader is isPageFile for data which cannot be reopened, it returns
// reader positioned at the beginning of the data.
func isPageReader(r io.Reader) (bool, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, nil, err
	}
	head = head[:n]
	kind, err := filetype.Match(head)
	if err != nil {
		return false, nil, err
	}
	return kind == typeHTML, io.MultiReader(bytes.NewReader(head), r), nil
}
