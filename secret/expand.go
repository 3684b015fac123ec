package secret

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// Expand substitutes $VAR and ${VAR} from the environment. Unlike
// os.ExpandEnv an unset variable is an error naming every missing key,
// so a typo never becomes an empty secret. $$ yields a literal $.
func Expand(s string) (string, error) {
	return expand(s, os.LookupEnv)
}

func expand(s string, lookup func(string) (string, bool)) (string, error) {
	if !strings.Contains(s, "$") {
		return s, nil
	}
	var missing []string
	out := os.Expand(s, func(name string) string {
		if name == "$" {
			return "$"
		}
		v, ok := lookup(name)
		if !ok && !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
		return v
	})
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}
	return out, nil
}
