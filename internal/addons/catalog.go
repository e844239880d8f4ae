// Package addons implements the add-on catalog, the remote metadata fetcher,
// the installation status resolver and the action dispatcher used by the
// add-on manager. Host primitives (installer, plugin directory, cache, HTTP)
// are reached through the narrow interfaces declared in host.go.
package addons

const (
	// GitHubBase is the owner URL every add-on repository lives under.
	GitHubBase = "https://github.com/soderlind"
	// RawBase serves raw repository files.
	RawBase = "https://raw.githubusercontent.com/soderlind"
)

// Entry is the static metadata of a single add-on. URLs and the plugin
// file are derived from the slug and never change at runtime.
type Entry struct {
	Slug        string `json:"slug" yaml:"slug"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	RepoURL     string `json:"repo_url" yaml:"repo_url"`
	ZipURL      string `json:"zip_url" yaml:"zip_url"`
	ReadmeURL   string `json:"readme_url" yaml:"readme_url"`
	PluginFile  string `json:"plugin_file" yaml:"plugin_file"`
}

type item struct {
	slug        string
	title       string
	description string
}

// items is the catalog table. Listing order follows this slice.
var items = []item{
	{
		slug:        "vmfa-ai-organizer",
		title:       "AI Organizer",
		description: "Uses vision-capable AI models to analyze actual image content and automatically organize your media library into virtual folders. This add-on requires an API key from a supported AI service provider, or a local LLM.",
	},
	{
		slug:        "vmfa-editorial-workflow",
		title:       "Editorial Workflow",
		description: "Role-based folder access, move restrictions, and Inbox workflow for Virtual Media Folders.",
	},
	{
		slug:        "vmfa-folder-exporter",
		title:       "Folder Exporter",
		description: "Export folders (or subtrees) as ZIP archives with optional CSV manifests.",
	},
	{
		slug:        "vmfa-media-cleanup",
		title:       "Media Cleanup",
		description: "Tools to identify and clean up unused or duplicate media files.",
	},
	{
		slug:        "vmfa-rules-engine",
		title:       "Rules Engine",
		description: "Rule-based automatic folder assignment for media uploads, based on metadata, file type, or other criteria.",
	},
}

// All returns every catalog entry in listing order.
func All() []Entry {
	entries := make([]Entry, 0, len(items))
	for _, it := range items {
		entries = append(entries, buildEntry(it))
	}
	return entries
}

// Get returns the entry registered under slug.
func Get(slug string) (Entry, bool) {
	if slug == "" {
		return Entry{}, false
	}
	for _, it := range items {
		if it.slug == slug {
			return buildEntry(it), true
		}
	}
	return Entry{}, false
}

// Slugs returns the catalog identifiers in listing order.
func Slugs() []string {
	slugs := make([]string, 0, len(items))
	for _, it := range items {
		slugs = append(slugs, it.slug)
	}
	return slugs
}

func buildEntry(it item) Entry {
	return Entry{
		Slug:        it.slug,
		Title:       it.title,
		Description: it.description,
		RepoURL:     GitHubBase + "/" + it.slug,
		ZipURL:      GitHubBase + "/" + it.slug + "/releases/latest/download/" + it.slug + ".zip",
		ReadmeURL:   RawBase + "/" + it.slug + "/main/readme.txt",
		PluginFile:  it.slug + "/" + it.slug + ".php",
	}
}
