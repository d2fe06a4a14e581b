package api

import (
	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/missionctl/internal/apperrors"
)

// mapDomainError maps an internal/apperrors.Error to an echo.HTTPError
// using Kind.HTTPStatus(), generalizing the teacher's mapServiceError
// (pkg/api/errors.go) from its fixed ValidationError/ErrNotFound/
// ErrNotCancellable/ErrAlreadyExists set to the fuller error-kind
// enumeration this spec's apperrors package carries.
func mapDomainError(err error) *echo.HTTPError {
	kind := apperrors.KindOf(err)
	return echo.NewHTTPError(kind.HTTPStatus(), err.Error())
}
