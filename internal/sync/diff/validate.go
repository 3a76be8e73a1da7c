package diff

import (
	"fmt"

	"github.com/dl-alexandre/drivemirror/internal/utils"
)

// Validate checks that no two actions write or delete the same local path.
// It runs before any side effect is applied.
func Validate(actions []Action) error {
	owner := make(map[string]int)
	for i, a := range actions {
		if a.Path == "" {
			return utils.NewAppError(utils.NewCLIError(utils.ErrCodeInternalError,
				fmt.Sprintf("action %d (%s) has no path", i, a.Type)).Build())
		}
		for _, target := range a.Targets() {
			if prev, ok := owner[target]; ok {
				return utils.NewAppError(utils.NewCLIError(utils.ErrCodeInternalError,
					fmt.Sprintf("actions %d and %d both target %q", prev, i, target)).
					WithContext("path", target).
					Build())
			}
			owner[target] = i
		}
	}
	return nil
}
