package logging

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppNameHookPrefixesMessages(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.AddHook(&appNameHook{appName: "schoolgate"})
	hook := test.NewLocal(log)

	log.Info("started")

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "[schoolgate] started", hook.LastEntry().Message)
}

func TestInitLoggerLevel(t *testing.T) {
	t.Cleanup(func() {
		Logger.ReplaceHooks(make(logrus.LevelHooks))
		Logger.SetLevel(logrus.InfoLevel)
	})

	InitLogger("", "DEBUG")
	assert.Equal(t, logrus.DebugLevel, Logger.GetLevel())

	InitLogger("", "bogus")
	assert.Equal(t, logrus.InfoLevel, Logger.GetLevel())

	t.Setenv("LOG_LEVEL", "warn")
	InitLogger("", "")
	assert.Equal(t, logrus.WarnLevel, Logger.GetLevel())
}
