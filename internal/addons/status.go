package addons

import (
	"context"
	"fmt"
)

// Status labels.
const (
	LabelNotInstalled = "Not installed"
	LabelInstalled    = "Installed"
	LabelActive       = "Active"
)

// Status is the local installation state of one add-on. It is recomputed on
// every call and never cached.
type Status struct {
	Installed bool   `json:"installed"`
	Active    bool   `json:"active"`
	Version   string `json:"version"`
	Label     string `json:"label"`
}

// ReleaseSource yields the latest release tag of an add-on.
type ReleaseSource interface {
	LatestRelease(ctx context.Context, e Entry) (string, bool)
}

// ReadmeSource yields the parsed readme of an add-on.
type ReadmeSource interface {
	Readme(ctx context.Context, e Entry) ReadmeDocument
}

// Row is one line of the add-on listing.
type Row struct {
	Entry           Entry  `json:"entry"`
	Status          Status `json:"status"`
	LatestVersion   string `json:"latest_version,omitempty"`
	UpdateAvailable bool   `json:"update_available"`
}

// Resolver derives installation status and update availability.
type Resolver struct {
	host        PluginHost
	releases    ReleaseSource
	readmes     ReadmeSource
	hostVersion string
}

// NewResolver creates a Resolver. hostVersion is the running platform
// version used when normalizing "Tested up to" values.
func NewResolver(host PluginHost, releases ReleaseSource, readmes ReadmeSource, hostVersion string) *Resolver {
	return &Resolver{
		host:        host,
		releases:    releases,
		readmes:     readmes,
		hostVersion: hostVersion,
	}
}

// Resolve reports whether the add-on is installed, active and which version
// its header declares. A header that cannot be read leaves Version empty.
func (r *Resolver) Resolve(e Entry) Status {
	if !r.host.Exists(e.PluginFile) {
		return Status{Label: LabelNotInstalled}
	}

	st := Status{Installed: true, Label: LabelInstalled}
	if header, err := r.host.ReadHeader(e.PluginFile); err == nil {
		st.Version = header.Version
	}
	if r.host.IsActive(e.PluginFile) {
		st.Active = true
		st.Label = LabelActive
	}
	return st
}

// UpdateAvailable reports whether latest is strictly newer than the
// installed version. Any unknown input yields false.
func UpdateAvailable(st Status, latest string, ok bool) bool {
	if !st.Installed || st.Version == "" || !ok || latest == "" {
		return false
	}
	newer, err := IsNewerVersion(NormalizeVersion(st.Version), NormalizeVersion(latest))
	if err != nil {
		return false
	}
	return newer
}

// Overview resolves every catalog entry. Release tags are only requested
// for installed add-ons.
func (r *Resolver) Overview(ctx context.Context) []Row {
	entries := All()
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		row := Row{Entry: e, Status: r.Resolve(e)}
		if row.Status.Installed {
			tag, ok := r.releases.LatestRelease(ctx, e)
			if ok {
				row.LatestVersion = NormalizeVersion(tag)
			}
			row.UpdateAvailable = UpdateAvailable(row.Status, tag, ok)
		}
		rows = append(rows, row)
	}
	return rows
}

// UpdateCount returns how many installed add-ons have an update pending.
func (r *Resolver) UpdateCount(ctx context.Context) int {
	count := 0
	for _, row := range r.Overview(ctx) {
		if row.UpdateAvailable {
			count++
		}
	}
	return count
}

// Details builds the plugin-information record for slug.
func (r *Resolver) Details(ctx context.Context, slug string) (Details, error) {
	e, ok := Get(slug)
	if !ok {
		return Details{}, fmt.Errorf("unknown add-on %q", slug)
	}
	return buildDetails(e, r.readmes.Readme(ctx, e), r.hostVersion), nil
}
