package errors

import (
	"fmt"
	"net/http"
	"testing"

	"gocal/domain/core"

	"github.com/stretchr/testify/assert"
)

func TestWrapClassifiesDomainErrors(t *testing.T) {
	err := Wrap(fmt.Errorf("grid: %w", core.ErrOverlappingObservations), "cannot calendarize")
	assert.Equal(t, CodeValidationError, GetCode(err))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
	assert.ErrorIs(t, err, core.ErrOverlappingObservations)

	err = Wrap(core.ErrNumericalFailure, "smoothing failed")
	assert.Equal(t, CodeNumericalFailure, GetCode(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))

	err = Wrap(core.ErrSeriesNotFound, "lookup")
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))
}

func TestWrapKeepsAppErrorCode(t *testing.T) {
	inner := InvalidInput("bad frequency")
	outer := Wrap(inner, "request rejected")
	assert.Equal(t, CodeInvalidInput, GetCode(outer))
	assert.Equal(t, "request rejected: bad frequency", outer.Error())
	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestHTTPStatusOfPlainErrors(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(core.ErrInsufficientData))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("boom")))
	assert.Equal(t, "UNKNOWN", GetCode(fmt.Errorf("boom")))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(ConfigInvalid("persistence is not configured")))
}
