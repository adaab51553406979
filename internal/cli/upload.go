package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saupload/saupload/internal/ban"
	"github.com/saupload/saupload/internal/config"
	"github.com/saupload/saupload/internal/distribution"
	"github.com/saupload/saupload/internal/events"
	"github.com/saupload/saupload/internal/quota"
	"github.com/saupload/saupload/internal/rcclient"
	"github.com/saupload/saupload/internal/session"
)

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload",
		Short: "Run one scheduling pass over every configured uploader",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload()
		},
	}
}

func runUpload() error {
	log := GetLogger()
	if cfgFile == "" {
		return fmt.Errorf("--config is required")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
		return err
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("configuration is invalid")
		return err
	}

	ledger := quota.New(cfg.StateDir+"/sa_quota_cache.json", cfg.Core.QuotaCapBytes, 0, log)
	bans := ban.New(cfg.StateDir+"/ban_cache.json", log)
	distStore := distribution.NewStore(cfg.StateDir + "/learned_sizes_cache.json")
	bus := events.NewEventBus(0)
	defer bus.Close()

	var rc *rcclient.Client
	if cfg.RC.URL != "" {
		rc = rcclient.New(cfg.RC.URL, cfg.RC.User, cfg.RC.Pass)
		if cfg.RC.Standalone.Enabled {
			rcdCfg := rcclient.StandaloneConfig{
				Enabled: true,
				Addr:    cfg.RC.Standalone.Addr,
				WebGUI:  cfg.RC.Standalone.WebGUI,
				NoAuth:  cfg.RC.Standalone.NoAuth,
				User:    cfg.RC.Standalone.User,
				Pass:    cfg.RC.Standalone.Pass,
			}
			if started, err := rcclient.EnsureStandaloneDaemon(GetContext(), cfg.Core.EngineBinaryPath, rcdCfg); err != nil {
				log.Warn().Err(err).Msg("standalone control-plane daemon did not come up, continuing without it")
			} else {
				rc = started
			}
		}
	}

	runner := session.New(cfg, ledger, bans, distStore, rc, bus, log, GetDryRun())
	runner.RunAll(GetContext())
	return nil
}
