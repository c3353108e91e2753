package cmd

import (
	"github.com/spf13/pflag"

	"github.com/1aeo/allium-sub000/collector"
	"github.com/1aeo/allium-sub000/dir"
	"github.com/1aeo/allium-sub000/log"
)

// Defined argument sets.
var (
	archive     = new(ArchiveSource)
	authorities = new(AuthorityList)
)

// Module is something that can be configured with command line arguments.
type Module interface {
	Attach(*pflag.FlagSet)
}

// Register adds a list of modules to the given flag set.
func Register(f *pflag.FlagSet, modules ...Module) {
	for _, m := range modules {
		m.Attach(f)
	}
}

// ArchiveSource configures the document archive to fetch from.
type ArchiveSource struct {
	base string
}

func (s *ArchiveSource) Attach(f *pflag.FlagSet) {
	f.StringVar(&s.base, "archive", collector.DefaultArchiveURL, "document archive base URL")
}

// Base returns the configured archive base URL.
func (s *ArchiveSource) Base() string {
	return s.base
}

// AuthorityList configures which directory authorities to evaluate.
type AuthorityList struct {
	file     string
	discover bool
}

// Attach configures command line flags.
func (a *AuthorityList) Attach(f *pflag.FlagSet) {
	f.StringVar(&a.file, "authorities-file", "", "YAML file overriding the authority table")
	f.BoolVar(&a.discover, "discover", false, "discover authorities via onionoo")
}

// Authorities resolves the configured authority set, falling back to the
// built-in table when an override source fails.
func (a *AuthorityList) Authorities(l log.Logger) []dir.Authority {
	if a.file != "" {
		loaded, err := dir.LoadAuthoritiesFile(a.file)
		if err != nil {
			log.Err(l, err, "authorities file unusable, using built-in table")
			return dir.Authorities
		}
		return loaded
	}

	if a.discover {
		discovered, err := dir.DiscoverAuthorities()
		if err != nil {
			log.Err(l, err, "authority discovery failed, using built-in table")
			return dir.Authorities
		}
		return discovered
	}

	return dir.Authorities
}
