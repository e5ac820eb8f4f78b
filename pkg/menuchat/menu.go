// Package menuchat answers restaurant menu questions with a four-stage
// prompt chain: reasoning, extraction, refinement and verification.
package menuchat

import (
	"errors"
	"os"
	"strings"

	"github.com/xhad/promptlab/pkg/errs"
)

// LoadMenu reads the menu text the chain answers from.
func LoadMenu(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &errs.DataLoadError{Path: path, Err: err}
	}
	menu := strings.TrimSpace(string(data))
	if menu == "" {
		return "", &errs.DataLoadError{Path: path, Err: errors.New("menu is empty")}
	}
	return menu, nil
}
