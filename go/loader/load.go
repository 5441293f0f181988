package loader

import (
	"bytes"
	"io/ioutil"

	"github.com/pkg/errors"
)

var UnknownMagic = errors.New("Could not identify file magic.")

// ReadFile reads an executable image from disk, rejecting anything that is
// not ELF before the caller hands it to Load.
func ReadFile(path string) ([]byte, error) {
	p, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read image")
	}
	if !MatchElf(bytes.NewReader(p)) {
		return nil, errors.Wrap(UnknownMagic, path)
	}
	return p, nil
}
