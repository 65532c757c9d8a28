// Package services contains the business logic of the share access service:
// password admission, the viewer read path and admin share management.
package services

import (
	"fmt"
	"regexp"

	"github.com/dmitrijs2005/showroom/internal/common"
	"github.com/dmitrijs2005/showroom/internal/server/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	shareCodeLength     = 8
	maxCodeAttempts     = 10
	minYear, maxYear    = 2020, 2099
	defaultAccessLogLen = 100
	maxAccessLogLen     = 1000
)

var shareCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{4,20}$`)

var quarters = map[string]bool{"1Q": true, "2Q": true, "3Q": true, "4Q": true}

var categories = map[string]bool{common.CategoryHolding: true, common.CategoryBank: true}

// bcryptCost is lowered in tests.
var bcryptCost = bcrypt.DefaultCost

// ValidateShareCode checks the public code shape.
func ValidateShareCode(code string) error {
	if !shareCodePattern.MatchString(code) {
		return common.ErrInvalidShareCode
	}
	return nil
}

// ValidatePassword accepts exactly four ASCII digits.
func ValidatePassword(password string) error {
	if len(password) != 4 {
		return common.ErrInvalidPasswordFormat
	}
	for i := 0; i < len(password); i++ {
		if password[i] < '0' || password[i] > '9' {
			return common.ErrInvalidPasswordFormat
		}
	}
	return nil
}

func validID(id string) bool {
	return uuid.Validate(id) == nil
}

func hashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func passwordMatches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// buildAssociations validates admin placements and assigns display order.
// Without an explicit order the position in the list is used.
func buildAssociations(in []models.AssociationInput) ([]models.Association, error) {
	out := make([]models.Association, 0, len(in))
	for i, a := range in {
		if !validID(a.ProjectID) {
			return nil, fmt.Errorf("%w: association %d: invalid project id %q", common.ErrorValidation, i, a.ProjectID)
		}
		if !categories[a.Category] {
			return nil, fmt.Errorf("%w: association %d: category must be %s or %s", common.ErrorValidation, i, common.CategoryHolding, common.CategoryBank)
		}
		if a.Year < minYear || a.Year > maxYear {
			return nil, fmt.Errorf("%w: association %d: year must be within %d-%d", common.ErrorValidation, i, minYear, maxYear)
		}
		if !quarters[a.Quarter] {
			return nil, fmt.Errorf("%w: association %d: quarter must be one of 1Q, 2Q, 3Q, 4Q", common.ErrorValidation, i)
		}

		order := i
		if a.DisplayOrder != nil {
			order = *a.DisplayOrder
		}

		out = append(out, models.Association{
			ProjectID:    a.ProjectID,
			Category:     a.Category,
			Year:         a.Year,
			Quarter:      a.Quarter,
			DisplayOrder: order,
		})
	}
	return out, nil
}
