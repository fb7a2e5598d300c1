// internal/licensing/lifecycle.go
package licensing

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/javajoker/license-authority/internal/models"
)

const MaxReasonLength = 1000

// ActionParams carries the admin-supplied inputs of a lifecycle action. Only
// the fields relevant to the action are read.
type ActionParams struct {
	Reason   string
	Features models.FeatureSet
	Limits   *models.Limits
}

// AdminActions lists the actions accepted by PlanAdminAction.
func AdminActions() []models.AuditAction {
	return []models.AuditAction{
		models.AuditActionSuspend,
		models.AuditActionReactivate,
		models.AuditActionRevoke,
		models.AuditActionUpdateFeatures,
		models.AuditActionUpdateLimits,
	}
}

// ParseAdminAction maps a route or request value to an admin action.
func ParseAdminAction(s string) (models.AuditAction, error) {
	for _, a := range AdminActions() {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrValidation, s)
}

// PlanAdminAction computes the license that results from applying action to
// cur. It returns a fresh copy and leaves cur untouched. The version counter
// is not bumped here; the store does that on the conditional write.
func PlanAdminAction(cur *models.License, action models.AuditAction, params ActionParams) (*models.License, error) {
	if cur == nil {
		return nil, ErrLicenseNotFound
	}

	reason := strings.TrimSpace(params.Reason)
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return nil, fmt.Errorf("%w: reason exceeds %d characters", ErrValidation, MaxReasonLength)
	}

	next := cur.Clone()

	switch action {
	case models.AuditActionSuspend:
		if reason == "" {
			return nil, fmt.Errorf("%w: reason is required to suspend", ErrValidation)
		}
		if err := requireFrom(cur.Status, action, models.LicenseStatusActive, models.LicenseStatusTrialing); err != nil {
			return nil, err
		}
		next.Status = models.LicenseStatusSuspended

	case models.AuditActionReactivate:
		if err := requireFrom(cur.Status, action, models.LicenseStatusSuspended); err != nil {
			return nil, err
		}
		next.Status = models.LicenseStatusActive

	case models.AuditActionRevoke:
		if reason == "" {
			return nil, fmt.Errorf("%w: reason is required to revoke", ErrValidation)
		}
		if err := requireFrom(cur.Status, action,
			models.LicenseStatusActive, models.LicenseStatusTrialing, models.LicenseStatusSuspended); err != nil {
			return nil, err
		}
		next.Status = models.LicenseStatusRevoked

	case models.AuditActionUpdateFeatures:
		if params.Features == nil {
			return nil, fmt.Errorf("%w: features are required", ErrValidation)
		}
		for key := range params.Features {
			if strings.TrimSpace(key) == "" {
				return nil, fmt.Errorf("%w: feature names must not be empty", ErrValidation)
			}
		}
		if err := requireNonTerminal(cur.Status, action); err != nil {
			return nil, err
		}
		next.Features = params.Features.Clone()

	case models.AuditActionUpdateLimits:
		if params.Limits == nil {
			return nil, fmt.Errorf("%w: limits are required", ErrValidation)
		}
		if err := validateLimits(*params.Limits); err != nil {
			return nil, err
		}
		if err := requireNonTerminal(cur.Status, action); err != nil {
			return nil, err
		}
		next.Limits = models.Limits{
			MaxUsers:    copyInt(params.Limits.MaxUsers),
			MaxStudents: copyInt(params.Limits.MaxStudents),
			MaxPrograms: copyInt(params.Limits.MaxPrograms),
		}

	default:
		return nil, fmt.Errorf("%w: %q is not an admin action", ErrValidation, action)
	}

	return next, nil
}

func requireFrom(status models.LicenseStatus, action models.AuditAction, allowed ...models.LicenseStatus) error {
	for _, s := range allowed {
		if status == s {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s a %s license", ErrIllegalTransition, action, status)
}

func requireNonTerminal(status models.LicenseStatus, action models.AuditAction) error {
	if status.Terminal() {
		return fmt.Errorf("%w: cannot %s a %s license", ErrIllegalTransition, action, status)
	}
	return nil
}

func validateLimits(l models.Limits) error {
	for name, v := range map[string]*int{
		"max_users":    l.MaxUsers,
		"max_students": l.MaxStudents,
		"max_programs": l.MaxPrograms,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrValidation, name)
		}
	}
	return nil
}

func copyInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
