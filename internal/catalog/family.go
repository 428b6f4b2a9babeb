package catalog

import (
	"fmt"
	"strings"
)

// Family is the closed set of model families a loader backend can host.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyCaptioner
	FamilyTagger
	FamilyDiffusion
	FamilyDetector
)

var familyNames = map[Family]string{
	FamilyCaptioner: "captioner",
	FamilyTagger:    "tagger",
	FamilyDiffusion: "diffusion",
	FamilyDetector:  "detector",
}

// Families lists every known family in declaration order.
func Families() []Family {
	return []Family{FamilyCaptioner, FamilyTagger, FamilyDiffusion, FamilyDetector}
}

func (f Family) String() string {
	if s, ok := familyNames[f]; ok {
		return s
	}
	return "unknown"
}

// ParseFamily maps a family name to its tag. Matching is exact after
// case folding; there is no substring guessing.
func ParseFamily(s string) (Family, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for f, name := range familyNames {
		if name == want {
			return f, nil
		}
	}
	return FamilyUnknown, fmt.Errorf("unknown model family %q", s)
}

func (f Family) MarshalText() ([]byte, error) {
	if f == FamilyUnknown {
		return nil, fmt.Errorf("cannot marshal unknown model family")
	}
	return []byte(f.String()), nil
}

func (f *Family) UnmarshalText(b []byte) error {
	v, err := ParseFamily(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
