package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-b9/internal/config"
	"github.com/teslashibe/go-b9/internal/log"
	"github.com/teslashibe/go-b9/pkg/b9"
	"github.com/teslashibe/go-b9/pkg/control"
	"github.com/teslashibe/go-b9/pkg/inference"
	"github.com/teslashibe/go-b9/pkg/tts"
)

type globalFlags struct {
	configPath string
	logLevel   string
	ollamaURL  string
	noVoice    bool
	noCamera   bool
}

func rootCmd() *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:   "b9",
		Short: "B-9 voice front-end for a local Ollama model",
		Long: `B-9 listens for a wake word, answers the command through the local
model and speaks the reply. Typed questions arrive over TCP (one line
per question) and the dashboard serves status and recovery history.

Examples:
  b9                          # run the unit
  b9 ask "status"             # ask a running unit over TCP
  b9 doctor                   # check hardware and backend`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnit(cmd.Context(), g)
		},
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", config.DefaultPath, "config file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&g.ollamaURL, "ollama", "", "Ollama base URL")
	root.Flags().BoolVar(&g.noVoice, "no-voice", false, "disable the voice loop")
	root.Flags().BoolVar(&g.noCamera, "no-camera", false, "disable the camera")

	run := &cobra.Command{
		Use:   "run",
		Short: "Run the unit (default)",
		RunE:  root.RunE,
	}
	run.Flags().AddFlagSet(root.Flags())

	root.AddCommand(run, askCmd(&g), doctorCmd(&g))
	return root
}

func loadConfig(g *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.ollamaURL != "" {
		cfg.Ollama.URL = g.ollamaURL
	}
	if g.noVoice {
		cfg.Voice.Enabled = false
	}
	if g.noCamera {
		cfg.Camera.Enabled = false
	}
	log.Init(cfg.LogLevel)
	return cfg, nil
}

func runUnit(ctx context.Context, g globalFlags) error {
	cfg, err := loadConfig(&g)
	if err != nil {
		return err
	}
	logger := log.L()

	deps, err := buildDeps(cfg, logger)
	if err != nil {
		return err
	}
	app, err := b9.New(cfg, deps, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return app.Run(ctx)
}

func askCmd(g *globalFlags) *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ask <text>",
		Short: "Send one question to a running unit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				cfg, err := loadConfig(g)
				if err != nil {
					return err
				}
				addr = dialAddr(cfg.Control.Addr)
			}
			reply, err := control.Ask(cmd.Context(), addr, strings.Join(args, " "), timeout)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "control address (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 100*time.Second, "reply timeout")
	return cmd
}

// dialAddr turns a listen address like ":5000" into a dialable one.
func dialAddr(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "127.0.0.1" + listen
	}
	return listen
}

func doctorCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check hardware, backend and ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			provider, err := inference.NewOllama(
				inference.WithBaseURL(cfg.Ollama.URL),
				inference.WithLogger(log.L()),
			)
			if err != nil {
				return err
			}
			defer provider.Close()

			var synth tts.Provider
			espeak, espeakErr := tts.NewEspeak(tts.WithVoice(cfg.Audio.Voice))
			if espeakErr == nil {
				synth = espeak
			}

			report := b9.Doctor(cmd.Context(), cfg, provider, synth, "")
			if espeakErr != nil {
				report.Checks = append(report.Checks, b9.Check{Name: "espeak", Detail: espeakErr.Error()})
			}
			report.Write(cmd.OutOrStdout())
			if !report.OK() {
				return errors.New("doctor: some checks failed")
			}
			return nil
		},
	}
}
