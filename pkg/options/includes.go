package options

// IncludesProperties are the descriptor properties held by Includes, in order.
var IncludesProperties = []string{"addIncludeFolders", "removeIncludeFolders"}

// Includes holds include folder contributions. Unlike Sources, removals are
// kept as a separate list; the subtraction happens when the build tree is
// constructed, where individual folders and files may override them.
type Includes struct {
	AddIncludeFolders    []string
	RemoveIncludeFolders []string
}

// NewIncludes creates Includes copied from init, which may be nil.
func NewIncludes(init *Includes) *Includes {
	i := &Includes{}
	if init != nil {
		i.AddIncludeFolders = copyStrings(init.AddIncludeFolders)
		i.RemoveIncludeFolders = copyStrings(init.RemoveIncludeFolders)
	}
	return i
}

func (i *Includes) lists() []namedList {
	return []namedList{
		{IncludesProperties[0], &i.AddIncludeFolders},
		{IncludesProperties[1], &i.RemoveIncludeFolders},
	}
}

// AppendFrom concatenates the non-empty lists of other in place.
func (i *Includes) AppendFrom(other *Includes) {
	if other == nil {
		return
	}
	appendLists(i.lists(), other.lists())
}

func (i *Includes) String() string {
	return renderLists("Includes", i.lists())
}

// SymbolsProperties are the descriptor properties held by Symbols, in order.
var SymbolsProperties = []string{"addSymbols", "removeSymbols"}

// Symbols holds preprocessor symbol contributions.
type Symbols struct {
	AddSymbols    []string
	RemoveSymbols []string
}

// NewSymbols creates Symbols copied from init, which may be nil.
func NewSymbols(init *Symbols) *Symbols {
	s := &Symbols{}
	if init != nil {
		s.AddSymbols = copyStrings(init.AddSymbols)
		s.RemoveSymbols = copyStrings(init.RemoveSymbols)
	}
	return s
}

func (s *Symbols) lists() []namedList {
	return []namedList{
		{SymbolsProperties[0], &s.AddSymbols},
		{SymbolsProperties[1], &s.RemoveSymbols},
	}
}

// AppendFrom concatenates the non-empty lists of other in place.
func (s *Symbols) AppendFrom(other *Symbols) {
	if other == nil {
		return
	}
	appendLists(s.lists(), other.lists())
}

func (s *Symbols) String() string {
	return renderLists("Symbols", s.lists())
}
