package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("loading: %w", New(ErrDecode, "bad hex"))
	assert.ErrorIs(t, err, ErrDecode)
	assert.NotErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, "loading: decode failure: bad hex", err.Error())
}

func TestForDocumentBindsDocID(t *testing.T) {
	base := New(ErrAuthentication, "message authentication failed")
	err := ForDocument(base, "42")

	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, "authentication failure: document 42: message authentication failed", err.Error())
	assert.Empty(t, base.DocID, "original must not be mutated")

	plain := ForDocument(errors.New("boom"), "7")
	var appErr *AppError
	assert.True(t, errors.As(plain, &appErr))
	assert.Equal(t, "7", appErr.DocID)

	assert.NoError(t, ForDocument(nil, "1"))
}

func TestClass(t *testing.T) {
	assert.Equal(t, "none", Class(nil))
	assert.Equal(t, "configuration", Class(New(ErrConfiguration, "x")))
	assert.Equal(t, "authentication", Class(New(ErrAuthentication, "x")))
	assert.Equal(t, "decode", Class(New(ErrDecode, "x")))
	assert.Equal(t, "persistence", Class(New(ErrPersistence, "x")))
	assert.Equal(t, "run_in_progress", Class(fmt.Errorf("lock: %w", ErrRunInProgress)))
	assert.Equal(t, "internal", Class(errors.New("x")))
}

func TestIsDocumentFailure(t *testing.T) {
	assert.True(t, IsDocumentFailure(New(ErrAuthentication, "x")))
	assert.True(t, IsDocumentFailure(New(ErrDecode, "x")))
	assert.False(t, IsDocumentFailure(New(ErrConfiguration, "x")))
	assert.False(t, IsDocumentFailure(New(ErrPersistence, "x")))
}
