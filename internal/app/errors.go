package app

import (
	"errors"
	"fmt"
	"net/http"

	"nosotros/api/internal/auth"
	"nosotros/api/internal/challenges"
	"nosotros/api/internal/couple"
	"nosotros/api/internal/email"
	"nosotros/api/internal/export"
	"nosotros/api/internal/history"
	"nosotros/api/internal/media"
	"nosotros/api/internal/moods"
	"nosotros/api/internal/notes"
	"nosotros/api/internal/pairing"
	"nosotros/api/internal/pet"
	"nosotros/api/internal/plans"
	"nosotros/api/internal/profile"
	"nosotros/api/internal/reasons"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

type errorRule struct {
	target error
	status int
	code   string
}

// errorRules maps sentinels to responses. The sentinel's text is the
// message shown to the user.
var errorRules = []errorRule{
	{couple.ErrNotHydrated, http.StatusConflict, "NOT_READY"},
	{pairing.ErrNotPaired, http.StatusConflict, "NOT_PAIRED"},
	{pairing.ErrCoupleNotFound, http.StatusNotFound, "COUPLE_NOT_FOUND"},
	{pairing.ErrEmptyCode, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	{pairing.ErrUnknownUser, http.StatusNotFound, "USER_NOT_FOUND"},
	{auth.ErrExpiredToken, http.StatusUnauthorized, "INVITE_EXPIRED"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "INVITE_INVALID"},
	{auth.ErrNoSecret, http.StatusServiceUnavailable, "INVITES_UNAVAILABLE"},
	{couple.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},

	{plans.ErrNoPlansAvailable, http.StatusConflict, "NO_PLANS_AVAILABLE"},
	{plans.ErrPlanNotFound, http.StatusNotFound, "NOT_FOUND"},
	{plans.ErrEntryNotFound, http.StatusNotFound, "NOT_FOUND"},
	{plans.ErrPhotoNotFound, http.StatusNotFound, "NOT_FOUND"},
	{plans.ErrAlreadyScheduled, http.StatusConflict, "ALREADY_SCHEDULED"},
	{plans.ErrInvalidDate, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	{plans.ErrInvalidScore, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	{plans.ErrEmptyTitle, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},

	{notes.ErrEmptyText, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	{notes.ErrNoteNotFound, http.StatusNotFound, "NOT_FOUND"},

	{reasons.ErrNotAuthor, http.StatusForbidden, "NOT_AUTHOR"},
	{reasons.ErrEmptyText, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	{reasons.ErrReasonNotFound, http.StatusNotFound, "NOT_FOUND"},
	{reasons.ErrNoReasons, http.StatusConflict, "NO_REASONS"},
	{reasons.ErrNoUser, http.StatusConflict, "NO_USER"},

	{moods.ErrUnknownMood, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	{moods.ErrNoUser, http.StatusConflict, "NO_USER"},
	{moods.ErrMoodNotFound, http.StatusNotFound, "NOT_FOUND"},

	{challenges.ErrNoActiveChallenge, http.StatusConflict, "NO_ACTIVE_CHALLENGE"},
	{challenges.ErrNoChangesLeft, http.StatusConflict, "NO_CHANGES_LEFT"},
	{challenges.ErrAlreadyProgressedToday, http.StatusConflict, "ALREADY_PROGRESSED"},
	{challenges.ErrChallengeCompleted, http.StatusConflict, "CHALLENGE_COMPLETED"},

	{pet.ErrInsufficientBalance, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"},
	{pet.ErrCooldown, http.StatusTooManyRequests, "COOLDOWN"},
	{pet.ErrUnknownInteraction, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	{pet.ErrUnknownAccessory, http.StatusNotFound, "NOT_FOUND"},
	{pet.ErrAlreadyOwned, http.StatusConflict, "ALREADY_OWNED"},
	{pet.ErrNotOwned, http.StatusConflict, "NOT_OWNED"},
	{pet.ErrEmptyName, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	{pet.ErrNoUser, http.StatusConflict, "NO_USER"},

	{profile.ErrInvalidDate, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	{profile.ErrEmptyName, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	{profile.ErrNoChanges, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	{profile.ErrNoUser, http.StatusConflict, "NO_USER"},
	{profile.ErrUnknownUser, http.StatusNotFound, "USER_NOT_FOUND"},

	{ErrUnknownFeature, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	{media.ErrUnavailable, http.StatusServiceUnavailable, "UPLOADS_UNAVAILABLE"},
	{email.ErrNotConfigured, http.StatusServiceUnavailable, "EMAIL_UNAVAILABLE"},
	{email.ErrInvalidAddress, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	{history.ErrNoHistory, http.StatusNotFound, "NO_HISTORY"},
	{export.ErrUnsupportedFormat, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	{export.ErrPDFDependencyMissing, http.StatusServiceUnavailable, "EXPORT_DEPENDENCY_MISSING"},
	{export.ErrDOCXDependencyMissing, http.StatusServiceUnavailable, "EXPORT_DEPENDENCY_MISSING"},
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var cooldown *pet.CooldownError
	if errors.As(err, &cooldown) {
		return http.StatusTooManyRequests, "COOLDOWN", cooldown.Error(), map[string]any{
			"tipo":             cooldown.Kind,
			"restanteSegundos": int(cooldown.Remaining.Seconds()),
		}
	}
	var author *reasons.AuthorError
	if errors.As(err, &author) {
		return http.StatusForbidden, "NOT_AUTHOR", author.Error(), nil
	}
	for _, rule := range errorRules {
		if errors.Is(err, rule.target) {
			return rule.status, rule.code, rule.target.Error(), nil
		}
	}
	if errors.Is(err, couple.ErrStore) {
		return http.StatusBadGateway, "STORE_ERROR", "No se pudo guardar. Intenta de nuevo.", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
