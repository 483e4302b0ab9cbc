package services

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikes-api/config"
)

func TestResetPasswordMessage(t *testing.T) {
	es := NewEmailService(config.Default(), logrus.New())

	m := es.resetPasswordMessage("rider@example.com", "http://localhost:8080/users/password/edit?reset_password_token=abc")

	assert.Equal(t, []string{"rider@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Reset password instructions"}, m.GetHeader("Subject"))
	assert.Equal(t, []string{"Bikes <noreply@bikes.local>"}, m.GetHeader("From"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "reset_password_token=3Dabc")
}

func TestPasswordChangedMessage(t *testing.T) {
	es := NewEmailService(config.Default(), logrus.New())

	m := es.passwordChangedMessage("rider@example.com")
	assert.Equal(t, []string{"Password Changed"}, m.GetHeader("Subject"))
}
