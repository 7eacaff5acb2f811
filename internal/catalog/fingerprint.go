package catalog

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spaolacci/murmur3"

	"github.com/catalystneuro/constantinople-lab-to-nwb/pkg/types"
)

// Fingerprint hashes the source files of a session into one 64-bit value.
// The hash covers file names and contents in sorted path order, so it is
// stable across invocations and directory listing order. Two conversions
// of byte-identical inputs always produce the same fingerprint; that is
// what lets a batch re-run skip sessions it has already converted.
func Fingerprint(paths ...string) (uint64, error) {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	h := murmur3.New64()
	for _, path := range sorted {
		f, err := os.Open(path)
		if err != nil {
			return 0, types.NewInputError(types.CodeParseFailed,
				fmt.Sprintf("catalog: open source file %s for fingerprinting", path), err)
		}
		h.Write([]byte(path))
		h.Write([]byte{0})
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return 0, types.NewInputError(types.CodeParseFailed,
				fmt.Sprintf("catalog: read source file %s for fingerprinting", path), err)
		}
	}
	return h.Sum64(), nil
}
