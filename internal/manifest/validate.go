package manifest

import "fmt"

// Validate checks a manifest for structural correctness:
// required fields, unique IDs, valid dependencies, valid roots, no cycles.
func Validate(m *Manifest) []TargetError {
	var errs []TargetError

	if m.Build.Name == "" {
		errs = append(errs, TargetError{
			Field: "build.name",
			Err:   fmt.Errorf("%w: build.name", ErrMissingField),
		})
	}

	ids := make(map[string]bool)
	for _, t := range m.Targets {
		if t.ID == "" {
			errs = append(errs, TargetError{
				Field: "id",
				Err:   fmt.Errorf("%w: id", ErrMissingField),
			})
			continue
		}
		if t.Kind == "" {
			errs = append(errs, TargetError{
				TargetID: t.ID,
				Field:    "kind",
				Err:      fmt.Errorf("%w: kind", ErrMissingField),
			})
		}
		if ids[t.ID] {
			errs = append(errs, TargetError{
				TargetID: t.ID,
				Err:      fmt.Errorf("%w: %q", ErrDuplicateID, t.ID),
			})
		}
		ids[t.ID] = true
	}

	for _, t := range m.Targets {
		for _, dep := range t.Deps {
			if !ids[dep] {
				errs = append(errs, TargetError{
					TargetID: t.ID,
					Field:    "deps",
					Err:      fmt.Errorf("%w: %q depends on %q", ErrUnknownDep, t.ID, dep),
				})
			}
		}
	}

	for _, id := range m.Build.Roots {
		if !ids[id] {
			errs = append(errs, TargetError{
				Field: "build.roots",
				Err:   fmt.Errorf("%w: %q", ErrUnknownRoot, id),
			})
		}
	}

	// Cycle detection by actually building the graph; only worth attempting
	// when the structural checks passed.
	if len(errs) == 0 {
		if _, err := Graph(m); err != nil {
			errs = append(errs, TargetError{
				Err: fmt.Errorf("%w: %v", ErrDependencyCycle, err),
			})
		}
	}

	return errs
}
