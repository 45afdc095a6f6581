package json

import (
	"bytes"
	"encoding/json"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pilosa/brewery"
	"github.com/pkg/errors"
)

const indent = "    "

// Write encodes recs to w as one json array, one indented element per
// record. Each element keeps the key order and value text it came with.
func Write(w io.Writer, recs []brewery.Record) error {
	if len(recs) == 0 {
		_, err := io.WriteString(w, "[]\n")
		return err
	}
	buf := &bytes.Buffer{}
	buf.WriteString("[\n")
	for i, rec := range recs {
		if i > 0 {
			buf.WriteString(",\n")
		}
		buf.WriteString(indent)
		if len(rec) == 0 {
			buf.WriteString("null")
			continue
		}
		if err := json.Indent(buf, rec, indent, indent); err != nil {
			return errors.Wrapf(err, "indenting record %d", i)
		}
	}
	buf.WriteString("\n]\n")
	_, err := buf.WriteTo(w)
	return err
}

// WriteFile writes recs to path. The file is written next to its destination
// under a temporary name and renamed into place, so a failed write leaves any
// previous file untouched.
func WriteFile(path string, recs []brewery.Record) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "making directory %s", dir)
	}
	tmp, err := ioutil.TempFile(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = Write(tmp, recs); err != nil {
		return errors.Wrap(err, "writing records")
	}
	if err = tmp.Sync(); err != nil {
		return errors.Wrap(err, "syncing temp file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return errors.Wrap(err, "setting file mode")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "renaming into %s", path)
	}
	return nil
}
