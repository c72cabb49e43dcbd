package sqlite

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// parseDSN converts sqlite://path[?query] into a driver DSN. It reports
// whether the database lives in memory.
func parseDSN(dsn string) (string, bool, error) {
	rest, ok := strings.CutPrefix(dsn, "sqlite://")
	if !ok {
		return "", false, eris.New("invalid sqlite DSN scheme, expected sqlite://")
	}

	path, query, _ := strings.Cut(rest, "?")
	if path == ":memory:" || path == "" {
		if query != "" {
			return ":memory:?" + query, true, nil
		}
		return ":memory:", true, nil
	}

	unescaped, err := url.PathUnescape(path)
	if err != nil {
		return "", false, eris.Wrap(err, "unescape path")
	}
	path = unescaped
	if !filepath.IsAbs(path) && !strings.HasPrefix(path, "./") && !strings.HasPrefix(path, "../") {
		path = "./" + path
	}

	if query != "" {
		return path + "?" + query, false, nil
	}
	return path, false, nil
}
