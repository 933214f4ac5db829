package persistence

import (
	"testing"

	_assert "github.com/stretchr/testify/assert"
)

func TestSearchPattern_Match(t *testing.T) {
	assert := _assert.New(t)

	p := Pattern("app*")
	assert.Equal(true, p.Match("application"))
	assert.Equal(true, p.Match("apple"))
	assert.Equal(false, p.Match("mapple"))
	assert.Equal(false, p.Match("car"))

	p = Pattern("6f96*:1")
	assert.Equal(true, p.Match("6f9619ff:1"))
	assert.Equal(false, p.Match("6f9619ff:12"))

	p = Pattern("a.b")
	assert.Equal(true, p.Match("a.b"))
	assert.Equal(false, p.Match("axb"))

	assert.Equal(false, Pattern("").Valid())
	assert.Equal(`6f96\_%`, Pattern("6f96_*").LikeString())
}

func TestValidateKey(t *testing.T) {
	assert := _assert.New(t)
	assert.NoError(ValidateKey("6f9619ff-8b86-d011:2"))
	assert.NoError(ValidateKey("6f9619ff_2"))
	assert.Equal(ErrSessionKeyEmpty, ValidateKey(""))
	assert.Equal(ErrSessionKeyInvalid, ValidateKey("../etc/passwd"))
	assert.Equal(ErrSessionKeyInvalid, ValidateKey("a b"))
}
