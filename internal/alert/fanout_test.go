package alert

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingEmitter struct {
	calls int
	err   error
}

func (r *recordingEmitter) Emit(a *Alert) error {
	r.calls++
	return r.err
}

func TestFanOutCallsEveryEmitter(t *testing.T) {
	a, b := &recordingEmitter{}, &recordingEmitter{}
	fo := NewFanOut(a, b)

	assert.NoError(t, fo.Emit(&Alert{RuleName: "r", Element: "e"}))
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestFanOutReturnsFirstErrorButCallsAll(t *testing.T) {
	failing := &recordingEmitter{err: errors.New("boom")}
	ok := &recordingEmitter{}
	fo := NewFanOut(failing, ok)

	err := fo.Emit(&Alert{RuleName: "r", Element: "e"})
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, ok.calls)
}
