package publish

import (
	"time"

	"github.com/aschepis/distill/internal/config"
)

// Platform identifiers recognized in config.BlogConfig.Platforms /
// config.IntakeConfig.Publishers, mirroring spec.md §4.9's fixed dialect
// list. Unlike the teacher's ProviderRegistry (llm/registry.go), there is
// no enable/disable distinction beyond membership in Platforms — every
// named platform is constructed and run.
const (
	PlatformVault        = "vault"
	PlatformPlain        = "plain"
	PlatformCMS          = "cms"
	PlatformThread       = "thread"
	PlatformProfessional = "professional"
	PlatformDiscussion   = "discussion"
	PlatformScheduler    = "scheduler"
)

// BuildFromConfig constructs one Publisher per platform named in
// platforms, wiring CMS/scheduler credentials from cfg.Publishers. Unknown
// platform names are skipped silently.
func BuildFromConfig(platforms []string, outputDir string, cfg config.Config) []Publisher {
	timeout := time.Duration(cfg.Retry.PublisherTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var publishers []Publisher
	for _, name := range platforms {
		switch name {
		case PlatformVault:
			publishers = append(publishers, NewVaultPublisher(outputDir))
		case PlatformPlain:
			publishers = append(publishers, NewPlainPublisher(outputDir))
		case PlatformCMS:
			creds := cfg.Publishers.CMS
			if !creds.Enabled {
				continue
			}
			publishers = append(publishers, NewCMSPublisher(creds.URL, creds.APIKey, timeout))
		case PlatformThread:
			creds := cfg.Publishers.CMS
			publishers = append(publishers, NewThreadPublisher(creds.URL, creds.APIKey, timeout))
		case PlatformProfessional:
			creds := cfg.Publishers.CMS
			publishers = append(publishers, NewProfessionalPublisher(creds.URL, creds.APIKey, timeout))
		case PlatformDiscussion:
			creds := cfg.Publishers.CMS
			publishers = append(publishers, NewDiscussionPublisher(creds.URL, creds.APIKey, "", timeout))
		case PlatformScheduler:
			sched := cfg.Publishers.Scheduler
			if !sched.Enabled {
				continue
			}
			publishers = append(publishers, NewSchedulerPublisher(sched.URL, sched.APIKey, sched.DefaultType, sched.Timezone, sched.ScheduleEnabled, timeout))
		}
	}
	return publishers
}
