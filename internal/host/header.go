package host

import (
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/vrsandeep/vmfa-addons/internal/addons"
)

// headerReadLimit is how much of a plugin file is scanned for its header.
const headerReadLimit = 8 * 1024

var headerFields = map[string]*regexp.Regexp{}

func init() {
	for _, name := range []string{"Plugin Name", "Version", "Description", "Author", "Requires at least", "Requires PHP"} {
		headerFields[name] = regexp.MustCompile(`(?mi)^[ \t/*#@]*` + regexp.QuoteMeta(name) + `:(.*)$`)
	}
}

// readHeader parses the metadata block at the top of a plugin file.
func readHeader(path string) (addons.PluginHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return addons.PluginHeader{}, err
	}
	defer f.Close()

	buf, err := io.ReadAll(io.LimitReader(f, headerReadLimit))
	if err != nil {
		return addons.PluginHeader{}, err
	}
	return parseHeader(string(buf)), nil
}

func parseHeader(data string) addons.PluginHeader {
	data = strings.ReplaceAll(data, "\r", "\n")
	return addons.PluginHeader{
		Name:            headerValue(data, "Plugin Name"),
		Version:         headerValue(data, "Version"),
		Description:     headerValue(data, "Description"),
		Author:          headerValue(data, "Author"),
		RequiresAtLeast: headerValue(data, "Requires at least"),
		RequiresPHP:     headerValue(data, "Requires PHP"),
	}
}

func headerValue(data, field string) string {
	m := headerFields[field].FindStringSubmatch(data)
	if m == nil {
		return ""
	}
	v := m[1]
	if i := strings.Index(v, "*/"); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
