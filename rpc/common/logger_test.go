package common

import (
	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
)

func TestLoggerLevel(t *testing.T) {
	l := CreateLogger("test").(*dMPILogger)
	require.True(t, l.enabled(logger.INFO))
	require.False(t, l.enabled(logger.DEBUG))

	l.SetLevel(logger.ERROR)
	require.True(t, l.enabled(logger.ERROR))
	require.False(t, l.enabled(logger.WARNING))
}

func TestLoggerLevelConcurrentUpdates(t *testing.T) {
	l := CreateLogger("test").(*dMPILogger)
	l.SetLevel(logger.ERROR)

	// Levels are set by every Init while the ranks of a local world already log
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				l.SetLevel(logger.ERROR)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				l.Debugf("never written %d", j)
			}
		}()
	}
	wg.Wait()
	require.False(t, l.enabled(logger.DEBUG))
}

func TestInitLoggersRejectsInvalidLevel(t *testing.T) {
	err := InitLoggers(WorldConfig{LogLevel: "loud"})
	require.ErrorIs(t, err, ErrInvalidConfig)

	require.NoError(t, InitLoggers(WorldConfig{LogLevel: "error"}))
}
