// Completion: 100% - Generation identity complete
package engine

import (
	"fmt"
	"strings"
)

// Generation identifies a GPU hardware generation.
// A compiled kernel variant targets exactly one generation and never changes it.
type Generation int

const (
	GenUnknown Generation = iota
	Gen6                  // Sandy Bridge
	Gen7                  // Ivy Bridge, Bay Trail
	Gen75                 // Haswell
	Gen8                  // Broadwell
	GenCHV                // Cherryview (low power Gen8)
	Gen9                  // Skylake
	GenBXT                // Broxton (low power Gen9)
	GenKBL                // Kaby Lake
	GenGLK                // Gemini Lake (low power Gen9)
)

var generationNames = map[Generation]string{
	Gen6:   "gen6",
	Gen7:   "gen7",
	Gen75:  "gen75",
	Gen8:   "gen8",
	GenCHV: "chv",
	Gen9:   "gen9",
	GenBXT: "bxt",
	GenKBL: "kbl",
	GenGLK: "glk",
}

// generationAliases maps every accepted spelling to a generation
var generationAliases = map[string]Generation{
	"gen6": Gen6, "6": Gen6, "snb": Gen6, "sandybridge": Gen6,
	"gen7": Gen7, "7": Gen7, "ivb": Gen7, "ivybridge": Gen7, "byt": Gen7, "baytrail": Gen7,
	"gen75": Gen75, "gen7.5": Gen75, "7.5": Gen75, "hsw": Gen75, "haswell": Gen75,
	"gen8": Gen8, "8": Gen8, "bdw": Gen8, "broadwell": Gen8,
	"chv": GenCHV, "cherryview": GenCHV, "bsw": GenCHV, "braswell": GenCHV,
	"gen9": Gen9, "9": Gen9, "skl": Gen9, "skylake": Gen9,
	"bxt": GenBXT, "broxton": GenBXT, "apl": GenBXT, "apollolake": GenBXT,
	"kbl": GenKBL, "kabylake": GenKBL,
	"glk": GenGLK, "geminilake": GenGLK,
}

func (g Generation) String() string {
	if name, ok := generationNames[g]; ok {
		return name
	}
	return "unknown"
}

// Generations returns every known generation in ascending order
func Generations() []Generation {
	return []Generation{Gen6, Gen7, Gen75, Gen8, GenCHV, Gen9, GenBXT, GenKBL, GenGLK}
}

// Valid reports whether g is a known generation
func (g Generation) Valid() bool {
	_, ok := generationNames[g]
	return ok
}

// IsGen8Family reports whether g uses the Gen8 instruction layout
// (4-bit type codes, 64-bit immediates, relocated register file fields).
func (g Generation) IsGen8Family() bool {
	return g >= Gen8
}

// IsGen9Family reports whether g is Skylake or any of its derivatives
func (g Generation) IsGen9Family() bool {
	return g >= Gen9
}

// IsLowPower reports whether g is an Atom-class part.
// These lack the native 64-bit integer multiplier of their big-core siblings.
func (g Generation) IsLowPower() bool {
	return g == GenCHV || g == GenBXT || g == GenGLK
}

// ParseGeneration parses a generation name, number or codename
func ParseGeneration(s string) (Generation, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if g, ok := generationAliases[key]; ok {
		return g, nil
	}
	candidates := make(map[string]int, len(generationAliases))
	for alias, g := range generationAliases {
		candidates[alias] = int(g)
	}
	msg := fmt.Sprintf("unsupported generation: %s (supported: gen6, gen7, gen75, gen8, chv, gen9, bxt, kbl, glk)", s)
	if similar := findSimilarNames(key, candidates, 3); len(similar) > 0 {
		msg += fmt.Sprintf(", did you mean '%s'?", similar[0])
	}
	return GenUnknown, fmt.Errorf("%s", msg)
}
