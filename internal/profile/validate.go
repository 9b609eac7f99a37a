package profile

import (
	"fmt"
	"regexp"
)

var nameRegexp = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// ValidateName checks that a username is usable as a profile directory name.
func ValidateName(name string) error {
	if name == "." || name == ".." || !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid username %q: must match ^[A-Za-z0-9_.-]{1,64}$", name)
	}
	return nil
}
