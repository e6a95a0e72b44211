// Package store implements crash-safe persistence of the tunnel
// cache: one "<url> <age>\n" line per cache tunnel with non-zero age,
// preceded by any number of "#"-comment or blank lines.
package store

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/relaymesh/tunnelmgr/internal/tunnelset"
)

var log = slog.Default().With("component", "tunnel-store")

// Entry is one parsed or to-be-written (url, age) pair.
type Entry struct {
	URL string
	Age uint8
}

// Read opens path; on failure it falls back to path+".bak"; on second
// failure it returns nil — a missing cache is not an error, the
// manager simply starts with an empty cache. Parse errors stop
// parsing further lines but keep everything already parsed.
func Read(path string) []Entry {
	data, err := os.ReadFile(path)
	if err != nil {
		data, err = os.ReadFile(path + ".bak")
		if err != nil {
			return nil
		}
	}
	return parse(data)
}

func parse(data []byte) []Entry {
	var entries []Entry

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		sp := strings.IndexByte(line, ' ')
		if sp < 0 {
			log.Warn("malformed cache line, stopping parse", "line", line)
			break
		}
		url := line[:sp]
		if len(url) == 0 || len(url) > tunnelset.MaxURLLen {
			log.Warn("cache URL out of bounds, stopping parse", "url", url)
			break
		}

		ageField := strings.TrimSpace(line[sp+1:])
		age, err := strconv.ParseUint(ageField, 10, 8)
		if err != nil {
			log.Warn("malformed cache age, stopping parse", "line", line, "error", err)
			break
		}

		entries = append(entries, Entry{URL: url, Age: uint8(age)})
	}

	return entries
}

// Write performs the crash-safe backup+temp+rename sequence:
//  1. delete any existing backup,
//  2. rename path → path+".bak",
//  3. write a temp file (path+".tmp") containing a header comment and
//     one "# AGE = <age>\n<url> <age>\n\n" block per entry with
//     Age != 0,
//  4. rename the temp file onto path.
//
// Partial failure of steps 1/2 is logged and does not abort the
// write (a missing prior cache or backup file is normal on first
// run); failure of the final rename is logged and leaves the temp
// file in place for forensics. os.Rename replaces an existing
// destination on POSIX, so no separate delete-primary step is needed
// before the final rename.
func Write(path string, entries []Entry) {
	bak := path + ".bak"
	tmp := path + ".tmp"

	if err := os.Remove(bak); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove old backup", "path", bak, "error", err)
	}
	if err := os.Rename(path, bak); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to rotate cache to backup", "path", path, "error", err)
	}

	if err := writeTemp(tmp, entries); err != nil {
		log.Warn("failed to write temp cache file", "path", tmp, "error", err)
		return
	}

	if err := os.Rename(tmp, path); err != nil {
		log.Warn("failed to install new cache file, temp file left in place", "tmp", tmp, "path", path, "error", err)
	}
}

func writeTemp(tmp string, entries []Entry) error {
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "# tunnelmgr cache file — generated, do not edit by hand")
	for _, e := range entries {
		if e.Age == 0 {
			continue
		}
		fmt.Fprintf(w, "# AGE = %d\n", e.Age)
		fmt.Fprintf(w, "%s %d\n\n", e.URL, e.Age)
	}
	return w.Flush()
}
