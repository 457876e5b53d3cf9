package main

import (
	"fmt"
	"io"
	"os"

	"review-gateway/config"
	"review-gateway/core"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// commandContext 子命令共享的配置
type commandContext struct {
	config config.Config
	out    io.Writer
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{out: os.Stderr}

	rootCmd := &cobra.Command{
		Use:           "review-gateway",
		Short:         "Multi-provider LLM review gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx.config = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newReviewCommand(ctx))
	rootCmd.AddCommand(newRotationCommand(ctx))
	rootCmd.AddCommand(newOptionsCommand(ctx))
	rootCmd.AddCommand(newKeysCommand(ctx))
	rootCmd.AddCommand(newGatewayCommand(ctx))

	return rootCmd
}

// newLogger serve 使用 JSON 格式，一次性命令使用文本格式
// 配置了 LOG_FILE 时同时写入带轮转的文件
func (c *commandContext) newLogger(jsonFormat bool) (*logrus.Logger, func(), error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(c.config.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.config.LogLevel, err)
	}
	log.SetLevel(level)

	if jsonFormat {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}

	if c.config.LogFile == "" {
		log.SetOutput(c.out)
		return log, func() {}, nil
	}

	rotator, err := core.NewLogRotator(c.config.LogFile, c.config.LogMaxSizeMB)
	if err != nil {
		return nil, nil, err
	}
	log.SetOutput(io.MultiWriter(c.out, rotator))
	return log, func() { _ = rotator.Close() }, nil
}

// withApp 为一次性命令构建 app 并在结束后关闭
func (c *commandContext) withApp(cmd *cobra.Command, fn func(a *app) error) error {
	log, closeLog, err := c.newLogger(false)
	if err != nil {
		return err
	}
	defer closeLog()

	a, err := buildApp(cmd.Context(), c.config, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}
