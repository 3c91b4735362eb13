package beam

import "sort"

// Solution maps solved unknowns to their values. Unknowns the data did not
// constrain may be absent.
type Solution map[Unknown]float64

// Names returns the textual form of the solution, keyed "b<pixel>" and "I<source>".
func (s Solution) Names() map[string]float64 {
	out := make(map[string]float64, len(s))
	for u, v := range s {
		out[u.String()] = v
	}
	return out
}

// SolutionFromNames parses a textual solution.
func SolutionFromNames(names map[string]float64) (Solution, error) {
	sol := make(Solution, len(names))
	for name, v := range names {
		u, err := ParseUnknown(name)
		if err != nil {
			return nil, err
		}
		sol[u] = v
	}
	return sol, nil
}

// Beam returns the solved gain of pixel.
func (s Solution) Beam(pixel int) (float64, bool) {
	v, ok := s[BeamPixel(pixel)]
	return v, ok
}

// Flux returns the solved flux of source src.
func (s Solution) Flux(src int) (float64, bool) {
	v, ok := s[SourceFlux(src)]
	return v, ok
}

// Sorted returns the unknowns ordered by kind, then index.
func (s Solution) Sorted() []Unknown {
	keys := make([]Unknown, 0, len(s))
	for u := range s {
		keys = append(keys, u)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Kind != keys[j].Kind {
			return keys[i].Kind < keys[j].Kind
		}
		return keys[i].Index < keys[j].Index
	})
	return keys
}
