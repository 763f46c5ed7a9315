package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	gameDuration   time.Duration
	port           int
	prefix         string
	profile        bool
	redis          string
	roomTTL        time.Duration
	scoresFile     string
	sequenceLength int
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.gameDuration < time.Second {
		return fmt.Errorf("invalid game duration (must be at least 1s): %s", c.gameDuration)
	}
	if c.roomTTL < time.Minute {
		return fmt.Errorf("invalid room ttl (must be at least 1m): %s", c.roomTTL)
	}
	if c.sequenceLength < 1 {
		return fmt.Errorf("invalid sequence length (must be positive): %d", c.sequenceLength)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("KANABOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "kanabox",
		Short:         "A kana romanization quiz webapp with practice, timed, and 1v1 race modes.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: KANABOX_BIND)")
	fs.DurationVar(&cfg.gameDuration, "game-duration", 60*time.Second, "length of timed and 1v1 matches (env: KANABOX_GAME_DURATION)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: KANABOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: KANABOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: KANABOX_PROFILE)")
	fs.StringVar(&cfg.redis, "redis", "", "redis address for the room store; empty uses in-memory (env: KANABOX_REDIS)")
	fs.DurationVar(&cfg.roomTTL, "room-ttl", 30*time.Minute, "staleness window after which rooms may no longer be joined (env: KANABOX_ROOM_TTL)")
	fs.StringVar(&cfg.scoresFile, "scores-file", "data/scores.json", "file for persisted personal bests; empty disables (env: KANABOX_SCORES_FILE)")
	fs.IntVar(&cfg.sequenceLength, "sequence-length", defaultSequenceLength, "number of prompts generated per 1v1 room (env: KANABOX_SEQUENCE_LENGTH)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: KANABOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: KANABOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: KANABOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: KANABOX_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("kanabox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
