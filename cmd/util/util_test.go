package util

import (
	"github.com/ValentinKolb/dMPI/lib/mpi"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"sync/atomic"
	"testing"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 40)
	wrapped := WrapString(text)

	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, strings.Fields(text), strings.Fields(wrapped))
}

func TestGetWorldConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("rank", 2)
	viper.Set("size", 3)
	viper.Set("endpoints", "a:1,b:2,c:3")
	viper.Set("transport", "tcp")
	viper.Set("transport-read-buffer", 4)
	viper.Set("serializer", "gob")
	viper.Set("compression", "zstd")

	config := GetWorldConfig()
	assert.Equal(t, 2, config.Rank)
	assert.Equal(t, 3, config.Size)
	assert.Equal(t, []string{"a:1", "b:2", "c:3"}, config.Endpoints)
	assert.Equal(t, "tcp", config.Transport.Name)
	assert.Equal(t, 4*1024, config.Transport.ReadBufferSize)
	assert.Equal(t, "gob", config.Serializer)
	assert.Equal(t, "zstd", config.Compression)
	require.NoError(t, config.Validate())
}

func TestRunWorldLocal(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("local", 3)
	viper.Set("serializer", "binary")
	viper.Set("log-level", "error")

	var ran atomic.Int32
	err := RunWorld(func(env *mpi.Env) error {
		ran.Add(1)
		world := env.World()
		sum, err := mpi.Allreduce(world, world.Rank(), mpi.Sum)
		if err != nil {
			return err
		}
		assert.Equal(t, 3, sum)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), ran.Load())
}
