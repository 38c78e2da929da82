package service

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/zlnvch/flashlist/models"
)

var usernameRegex = regexp.MustCompile(`^[\p{L}\p{N}_.-]{1,32}$`)

const (
	minPasswordLength = 6
	maxTextLength     = 10000
)

func ValidateLevel(level int) error {
	if level < models.LevelMin || level > models.LevelMax {
		return invalidParams("level must be between %d and %d", models.LevelMin, models.LevelMax)
	}
	return nil
}

func ValidateType(t models.ItemType) error {
	if !t.Valid() {
		return invalidParams("type must be %q or %q", models.ItemTask, models.ItemHeader)
	}
	return nil
}

func ValidateText(text string) error {
	if len(text) > maxTextLength {
		return invalidParams("text must be at most %d bytes", maxTextLength)
	}
	return nil
}

func ValidatePatch(patch models.ItemPatch) error {
	if patch.IsEmpty() {
		return invalidParams("no fields to update")
	}
	if patch.Text != nil {
		if err := ValidateText(*patch.Text); err != nil {
			return err
		}
	}
	if patch.Level != nil {
		if err := ValidateLevel(*patch.Level); err != nil {
			return err
		}
	}
	if patch.Type != nil {
		if err := ValidateType(*patch.Type); err != nil {
			return err
		}
	}
	return nil
}

func ValidateRegistration(params RegisterParams) error {
	if params.Username == "" || params.Email == "" || params.Password == "" {
		return invalidParams("username, email and password are required")
	}
	if !usernameRegex.MatchString(params.Username) {
		return invalidParams("invalid username")
	}
	addr, err := mail.ParseAddress(params.Email)
	if err != nil || addr.Address != params.Email || !strings.Contains(params.Email, "@") {
		return invalidParams("invalid email")
	}
	if len(params.Password) < minPasswordLength {
		return invalidParams("password must be at least %d characters", minPasswordLength)
	}
	return nil
}
