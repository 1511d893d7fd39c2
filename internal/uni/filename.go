package uni

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// npsPattern matches the exchange-platform file naming convention:
// sender and receiver EANs, a sequence number, an EXPORT token carrying
// the two-digit variant code, a MIG token and the csv extension.
var npsPattern = regexp.MustCompile(`(?i)^(?:.*/)?(?P<filename>(?P<sender>[0-9]{13})\.(?P<receiver>[0-9]{13})\.(?P<sequence>[0-9]*)\.(?P<export>EXPORT(?P<exportno>[0-9]{2})[^.]*)\.(?P<mig>MIG[^.]*)\.csv)$`)

// FileMatch is a decomposed exchange file name.
type FileMatch struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Sequence string `json:"sequence"`
	Export   string `json:"export"`
	MIG      string `json:"mig"`

	// Variant is the two-digit export code, e.g. 91 for EXPORT91.
	Variant int `json:"variant"`
}

// MatchFilename decomposes a path or bare file name that follows the
// exchange naming convention. The second return is false when the name
// does not match.
func MatchFilename(name string) (FileMatch, bool) {
	m := npsPattern.FindStringSubmatch(name)
	if m == nil {
		return FileMatch{}, false
	}

	group := func(g string) string {
		return m[npsPattern.SubexpIndex(g)]
	}
	variant, err := strconv.Atoi(group("exportno"))
	if err != nil {
		return FileMatch{}, false
	}

	return FileMatch{
		Path:     name,
		Filename: group("filename"),
		Sender:   group("sender"),
		Receiver: group("receiver"),
		Sequence: group("sequence"),
		Export:   group("export"),
		MIG:      group("mig"),
		Variant:  variant,
	}, true
}

// FindFiles returns every file in dir whose name follows the exchange
// naming convention, in directory order.
func FindFiles(dir string) ([]FileMatch, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []FileMatch
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m, ok := MatchFilename(entry.Name())
		if !ok {
			continue
		}
		m.Path = filepath.Join(dir, entry.Name())
		out = append(out, m)
	}
	return out, nil
}
