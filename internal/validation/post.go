package validation

import (
	"errors"
	"fmt"
	"strings"
)

// ValidateTitle checks an already trimmed post title.
func ValidateTitle(title string) error {
	if title == "" {
		return errors.New("title is required")
	}
	return nil
}

// ValidateDescription checks an already trimmed post description.
func ValidateDescription(description string) error {
	if description == "" {
		return errors.New("description is required")
	}
	return nil
}

// ValidateImages rejects blank image references. Order and duplicates are kept as given.
func ValidateImages(images []string) error {
	for i, ref := range images {
		if strings.TrimSpace(ref) == "" {
			return fmt.Errorf("images[%d] must not be empty", i)
		}
	}
	return nil
}
