package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/gea-smc/gea/internal/errors"
	"github.com/gea-smc/gea/internal/record"
)

// promptRecord asks for whatever is missing: the category when *cat is
// zero, and the content when content is non-nil. With prefill the text
// area starts from the category template.
func promptRecord(cat *record.Category, content *string, prefill bool) error {
	var groups []*huh.Group

	if *cat == 0 {
		options := make([]huh.Option[record.Category], len(record.All))
		for i, c := range record.All {
			options[i] = huh.NewOption(c.Label(), c)
		}
		groups = append(groups, huh.NewGroup(
			huh.NewSelect[record.Category]().
				Title("Record type").
				Options(options...).
				Value(cat),
		))
	}

	if content != nil {
		groups = append(groups, huh.NewGroup(
			huh.NewText().
				TitleFunc(func() string { return cat.Label() }, cat).
				DescriptionFunc(func() string {
					if prefill {
						return "Replace the example values"
					}
					return "Suggested format:\n" + cat.Template()
				}, cat).
				Lines(12).
				Value(content).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("the record is empty")
					}
					return nil
				}),
		))
	}

	if len(groups) == 0 {
		return nil
	}

	form := huh.NewForm(groups...)
	if prefill && content != nil && *cat != 0 && *content == "" {
		*content = cat.Template()
	}
	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrValidation,
			"Couldn't get the record from the form",
			"Pass --category and the content as arguments instead")
	}
	return nil
}

// confirm asks a yes/no question.
func confirm(title string) (bool, error) {
	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(title).Value(&ok),
	))
	if err := form.Run(); err != nil {
		return false, errors.WrapWithCode(err, errors.ErrValidation,
			"Couldn't get your answer", "Pass --yes to skip the question")
	}
	return ok, nil
}

func joinKeys() string {
	return strings.Join(record.Keys(), ", ")
}

// firstLine returns the headline of err without the failure symbol.
func firstLine(err error) string {
	s := strings.TrimPrefix(err.Error(), "✗ ")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
