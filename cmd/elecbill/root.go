package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/elecbill/config"
	"github.com/YuminosukeSato/elecbill/pipeline"
	"github.com/YuminosukeSato/elecbill/pkg/errors"
	"github.com/YuminosukeSato/elecbill/pkg/log"
)

const envPrefix = "ELECBILL"

var applyFlags = []string{"preprocessor", "input", "output"}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "elecbill",
		Short:         "ElectricityBill preprocessing pipeline",
		Long:          `Validates raw tabular data, splits it into train/test sets and fits the column preprocessor.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(v)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "config/config.yaml", "path to config.yaml")
	flags.String("params", "params.yaml", "path to params.yaml")
	flags.String("schema", "schema.yaml", "path to schema.yaml")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", string(log.FormatPretty), "log format: pretty, json")
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}

	root.AddCommand(
		newRunCmd(v),
		newValidateCmd(v),
		newTransformCmd(v),
		newApplyCmd(v),
		newWatchCmd(v),
	)
	return root
}

func setupLogging(v *viper.Viper) error {
	level, err := log.ToLogLevel(v.GetString("log-level"))
	if err != nil {
		return err
	}
	provider := log.NewZerologProviderWithWriter(os.Stderr, log.ToFormat(v.GetString("log-format")), level)
	log.SetGlobalProvider(provider)

	warnLogger := provider.GetLoggerWithName("warnings")
	errors.SetZerologWarnFunc(func(w error) {
		warnLogger.Warn(w.Error(), log.ErrAttrKey, w)
	})
	return nil
}

func newRunner(v *viper.Viper) (*pipeline.Runner, error) {
	mgr, err := config.NewManager(v.GetString("config"), v.GetString("params"), v.GetString("schema"))
	if err != nil {
		log.GetLoggerWithName("cli").Error("cannot load configuration", log.ErrAttrKey, err)
		return nil, err
	}
	return pipeline.New(mgr, log.GetLoggerWithName("pipeline")), nil
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run validation and transformation",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRunner(v)
			if err != nil {
				return err
			}
			_, err = r.Run()
			return err
		},
	}
}

func newValidateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the raw data columns against the schema and write the status file",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRunner(v)
			if err != nil {
				return err
			}
			_, err = r.Validate()
			return err
		},
	}
}

func newTransformCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "transform",
		Short: "Split the raw data and fit the preprocessor (requires a passing validation status)",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRunner(v)
			if err != nil {
				return err
			}
			_, err = r.Transform()
			return err
		},
	}
}

func newApplyCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Transform new raw rows with a persisted preprocessor",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range applyFlags {
				if v.GetString(name) == "" {
					return errors.NewValidationError(name, "required flag is not set", "")
				}
			}
			_, err := pipeline.Apply(v.GetString("preprocessor"), v.GetString("input"), v.GetString("output"))
			return err
		},
	}
	cmd.Flags().String("preprocessor", "", "path to preprocessor_obj.gob")
	cmd.Flags().String("input", "", "raw CSV with a header row")
	cmd.Flags().String("output", "", "where to write the transformed matrix")
	for _, name := range applyFlags {
		if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
	return cmd
}

func newWatchCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Re-run the pipeline every time the raw data file changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := config.NewManager(v.GetString("config"), v.GetString("params"), v.GetString("schema"))
			if err != nil {
				return err
			}
			tc, err := mgr.DataTransformationConfig()
			if err != nil {
				return err
			}
			runner := pipeline.New(mgr, log.GetLoggerWithName("pipeline"))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if _, err := runner.Run(); err != nil {
				log.GetLoggerWithName("cli").Warn("initial run failed", log.ErrAttrKey, err)
			}
			return pipeline.Watch(ctx, tc.DataPath(), func() error {
				_, err := runner.Run()
				return err
			}, log.GetLoggerWithName("watch"))
		},
	}
}
