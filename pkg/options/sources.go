package options

import "sort"

// SourcesProperties are the descriptor properties held by Sources, in order.
var SourcesProperties = []string{"addSourceFolders", "removeSourceFolders"}

// Sources holds source folder contributions of one layer, or the
// concatenation of several layers.
type Sources struct {
	AddSourceFolders    []string
	RemoveSourceFolders []string
}

// NewSources creates Sources copied from init, which may be nil.
func NewSources(init *Sources) *Sources {
	s := &Sources{}
	if init != nil {
		s.AddSourceFolders = copyStrings(init.AddSourceFolders)
		s.RemoveSourceFolders = copyStrings(init.RemoveSourceFolders)
	}
	return s
}

func (s *Sources) lists() []namedList {
	return []namedList{
		{SourcesProperties[0], &s.AddSourceFolders},
		{SourcesProperties[1], &s.RemoveSourceFolders},
	}
}

// AppendFrom concatenates the non-empty lists of other in place.
func (s *Sources) AppendFrom(other *Sources) {
	if other == nil {
		return
	}
	appendLists(s.lists(), other.lists())
}

// Folders returns the effective source folders: every added folder that is not
// removed at any layer, compared by strict string equality, sorted.
func (s *Sources) Folders() []string {
	set := make(map[string]struct{}, len(s.AddSourceFolders))
	for _, f := range s.AddSourceFolders {
		set[f] = struct{}{}
	}
	for _, f := range s.RemoveSourceFolders {
		delete(set, f)
	}

	folders := make([]string, 0, len(set))
	for f := range set {
		folders = append(folders, f)
	}
	sort.Strings(folders)
	return folders
}

func (s *Sources) String() string {
	return renderLists("Sources", s.lists())
}
