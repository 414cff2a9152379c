package logging

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestConfigure(t *testing.T) {
	defer func() {
		SetOutput(os.Stdout)
		Configure("info", "json", false)
	}()

	var buf bytes.Buffer
	SetOutput(&buf)

	logger := Configure("warn", "json", false)
	assert.Same(t, Logger, logger)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	WithFields(logrus.Fields{"operation": "test"}).Info("hidden")
	assert.Empty(t, buf.String())

	WithError(errors.New("boom")).Warn("shown")
	assert.Contains(t, buf.String(), `"error":"boom"`)
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	Configure("warn", "text", true)
	assert.Equal(t, logrus.DebugLevel, Logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, Logger.Formatter)
}

func TestSetLevel(t *testing.T) {
	defer SetLevel("info")

	tests := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"info":    logrus.InfoLevel,
		"warn":    logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"verbose": logrus.InfoLevel,
	}
	for input, expected := range tests {
		SetLevel(input)
		assert.Equal(t, expected, Logger.GetLevel(), input)
	}
}
