package descriptor

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateGlobal checks structural soundness of a global descriptor: required
// fields via struct tags plus the domain invariants the tags cannot express.
func ValidateGlobal(d GlobalFormDescriptor) error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("descriptor: invalid global descriptor: %w", err)
	}
	return validateBlocks(d.Blocks)
}

// ValidateSubForm checks structural soundness of a sub-form fragment.
func ValidateSubForm(d SubFormDescriptor) error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("descriptor: invalid sub-form %q: %w", d.ID, err)
	}
	return validateBlocks(d.Blocks)
}

func validateBlocks(blocks []BlockDescriptor) error {
	for _, block := range blocks {
		if block.SubFormRef != "" && len(block.Fields) > 0 {
			return fmt.Errorf("descriptor: block %q references sub-form %q but also declares fields", block.ID, block.SubFormRef)
		}
		for _, field := range block.Fields {
			if len(field.Items) > 0 && field.DataSource != nil {
				return fmt.Errorf("descriptor: field %q declares both items and a data source", field.ID)
			}
		}
	}
	return nil
}
