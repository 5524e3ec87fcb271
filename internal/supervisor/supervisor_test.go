package supervisor

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestResultString(t *testing.T) {
	cases := []struct {
		result Result
		want   string
	}{
		{Ok, "Ok"},
		{AlreadyInDesiredState, "AlreadyInDesiredState"},
		{PermissionDenied, "PermissionDenied"},
		{Timeout, "Timeout"},
		{Other, "Other"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.result.String())
	}
}

func TestIsPermissionErrMatchesMessage(t *testing.T) {
	assert.True(t, isPermissionErr(errors.New("Permission denied")))
	assert.False(t, isPermissionErr(errors.New("unit not found")))
}

func TestLogPermissionIssueIsOneShotUntilReset(t *testing.T) {
	s := New("slate-encoder.service", zerolog.Nop())

	assert.False(t, s.loggedPermissionFail)
	s.logPermissionIssue(errors.New("permission denied"))
	assert.True(t, s.loggedPermissionFail)

	// A second failure while already logged does not panic or re-log;
	// we only assert the flag stays set until a success resets it.
	s.logPermissionIssue(errors.New("permission denied"))
	assert.True(t, s.loggedPermissionFail)

	s.resetPermissionLog()
	assert.False(t, s.loggedPermissionFail)
}
