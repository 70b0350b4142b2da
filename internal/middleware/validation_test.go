package middleware

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRoomID(t *testing.T) {
	assert.NoError(t, ValidateRoomID("invoice:inv_1"))
	assert.Error(t, ValidateRoomID(""))
	assert.Error(t, ValidateRoomID("no-separator"))
	assert.Error(t, ValidateRoomID("invoice:"+strings.Repeat("x", 128)))
}

func TestValidateEntityID(t *testing.T) {
	assert.NoError(t, ValidateEntityID("inv_1"))
	assert.Error(t, ValidateEntityID(""))
	assert.Error(t, ValidateEntityID(strings.Repeat("x", 65)))
}

func TestValidateTitle(t *testing.T) {
	assert.NoError(t, ValidateTitle("Standup"))
	assert.NoError(t, ValidateTitle(""))
	assert.Error(t, ValidateTitle(strings.Repeat("x", 257)))
	assert.Error(t, ValidateTitle(string([]byte{0xff, 0xfe})))
}
