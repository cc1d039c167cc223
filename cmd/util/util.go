package util

import (
	"fmt"
	"github.com/ValentinKolb/dMPI/lib/mpi"
	"github.com/ValentinKolb/dMPI/rpc/common"
	"github.com/ValentinKolb/dMPI/rpc/transport/mem"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/rs/xid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"strings"
)

var Logger = logger.GetLogger("cmd")

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupWorldFlags adds the world membership and transport flags to a command
func SetupWorldFlags(cmd *cobra.Command) {
	key := "rank"
	cmd.PersistentFlags().Int(key, 0, WrapString("Rank of this process in the world"))

	key = "size"
	cmd.PersistentFlags().Int(key, 1, WrapString("Number of ranks in the world"))

	key = "endpoints"
	cmd.PersistentFlags().String(key, "", WrapString("Comma-separated listen addresses of all ranks, indexed by rank (e.g. localhost:7000,localhost:7001 or /tmp/r0.sock,/tmp/r1.sock)"))

	key = "job-id"
	cmd.PersistentFlags().String(key, "", WrapString("Identifier of the run used in logs (random if empty)"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("Timeout in seconds of a single frame write"))

	key = "transport-connect-timeout"
	cmd.PersistentFlags().Int(key, 30, WrapString("How long to wait for all peers to become reachable (in seconds)"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry sending a frame"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the write buffer for the transport (in KB, ignored for http)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the read buffer for the transport (in KB, ignored for http)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY for the transport (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval for the transport (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time for the transport (in seconds, only for tcp)"))

	key = "compression"
	cmd.PersistentFlags().String(key, "none", WrapString("Compression of frames (none, zstd)"))

	key = "compression-min-bytes"
	cmd.PersistentFlags().Int(key, 4096, WrapString("Frames smaller than this are never compressed"))

	key = "metrics-endpoint"
	cmd.PersistentFlags().String(key, "", WrapString("Serve Prometheus metrics on this address (e.g. localhost:9100)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "local"
	cmd.PersistentFlags().Int(key, 0, WrapString("Run a world of this many ranks inside this process (in-memory transport), ignoring rank, size and endpoints"))
}

// InitConfig loads .env files and binds environment variables with the DMPI_ prefix
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dmpi")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetWorldConfig reads the world configuration from viper
func GetWorldConfig() common.WorldConfig {
	var endpoints []string
	if e := viper.GetString("endpoints"); e != "" {
		endpoints = strings.Split(e, ",")
	}

	return common.WorldConfig{
		Rank:      viper.GetInt("rank"),
		Size:      viper.GetInt("size"),
		Endpoints: endpoints,
		JobID:     viper.GetString("job-id"),
		Transport: common.TransportConfig{
			Name:                 viper.GetString("transport"),
			RetryCount:           viper.GetInt("transport-retries"),
			ConnectTimeoutSecond: viper.GetInt("transport-connect-timeout"),
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
				TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			},
		},
		TimeoutSecond:       viper.GetInt("timeout"),
		Serializer:          viper.GetString("serializer"),
		Compression:         viper.GetString("compression"),
		CompressionMinBytes: viper.GetInt("compression-min-bytes"),
		MetricsEndpoint:     viper.GetString("metrics-endpoint"),
		LogLevel:            viper.GetString("log-level"),
	}
}

// RunWorld runs fn in the configured world. With --local N every rank of a
// world of size N runs as a goroutine of this process, otherwise this process
// joins the world as the configured rank. Every rank is finalized afterwards.
func RunWorld(fn func(env *mpi.Env) error) error {
	config := GetWorldConfig()
	if err := common.InitLoggers(config); err != nil {
		return err
	}

	local := viper.GetInt("local")
	if local <= 0 {
		env, err := mpi.Init(config)
		if err != nil {
			return err
		}
		runErr := fn(env)
		if err := env.Finalize(); err != nil && runErr == nil {
			runErr = err
		}
		return runErr
	}

	// all local ranks belong to the same run
	if config.JobID == "" {
		config.JobID = xid.New().String()
	}

	Logger.Infof("Starting local world of %d ranks (job %s)", local, config.JobID)
	hub := mem.NewHub(local)
	var g errgroup.Group
	for rank := 0; rank < local; rank++ {
		rankConfig := config
		rankConfig.Rank = rank
		rankConfig.Size = local
		rankConfig.Endpoints = nil
		rankConfig.Transport.Name = "mem"
		rankConfig.MetricsEndpoint = ""
		if rank == 0 {
			rankConfig.MetricsEndpoint = config.MetricsEndpoint
		}

		g.Go(func() error {
			env, err := mpi.Init(rankConfig, mpi.WithTransports(hub.Server(rank), hub.Client(rank)))
			if err != nil {
				return fmt.Errorf("rank %d: %w", rank, err)
			}
			runErr := fn(env)
			if err := env.Finalize(); err != nil && runErr == nil {
				runErr = err
			}
			if runErr != nil {
				return fmt.Errorf("rank %d: %w", rank, runErr)
			}
			return nil
		})
	}
	return g.Wait()
}
