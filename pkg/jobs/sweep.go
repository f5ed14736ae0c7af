package jobs

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/services"
	"github.com/scholarfolio/portfolio-api/pkg/tools"
)

// ScheduleAssetSweep sets up a cron job that removes orphaned upload files
// every day.
func ScheduleAssetSweep(ctx context.Context, sweeper *services.AssetSweeper) *cron.Cron {
	c := cron.New()
	_, _ = c.AddFunc("@daily", func() {
		tools.Dispatch(context.Background(), "asset_sweep", func(ctx context.Context) error {
			return sweeper.Sweep(ctx)
		})
	})
	c.Start()

	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return c
}
