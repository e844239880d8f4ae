package addons

import "html"

// Author is the fixed author markup of every catalog add-on.
const Author = `<a href="https://soderlind.no">Per Soderlind</a>`

// Section is one named block of a plugin-information record.
type Section struct {
	Key  string `json:"key"`
	HTML string `json:"html"`
}

// Details is the plugin-information record shown in the details modal.
type Details struct {
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Version     string    `json:"version"`
	Requires    string    `json:"requires"`
	Tested      string    `json:"tested"`
	RequiresPHP string    `json:"requires_php"`
	Author      string    `json:"author"`
	Homepage    string    `json:"homepage"`
	External    bool      `json:"external"`
	Sections    []Section `json:"sections"`
}

func buildDetails(e Entry, doc ReadmeDocument, hostVersion string) Details {
	name := doc.Name
	if name == "" {
		name = e.Title
	}

	d := Details{
		Name:        html.UnescapeString(name),
		Slug:        e.Slug,
		Version:     doc.StableTag,
		Requires:    doc.RequiresAtLeast,
		Tested:      NormalizeTested(doc.TestedUpTo, hostVersion),
		RequiresPHP: doc.RequiresPHP,
		Author:      Author,
		Homepage:    e.RepoURL,
		External:    true,
	}

	// description always leads, even when the readme has none.
	d.Sections = append(d.Sections, Section{Key: "description", HTML: doc.Sections["description"]})
	for _, key := range doc.SectionOrder {
		if key == "description" || key == "screenshots" {
			continue
		}
		d.Sections = append(d.Sections, Section{Key: key, HTML: doc.Sections[key]})
	}
	return d
}
