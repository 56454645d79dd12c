package social

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/campusops/lostfound/internal/store"
)

// Dispatcher drains queued social posts on a cron schedule. A Redis lock
// keeps replicas from double-posting the same batch.
type Dispatcher struct {
	Store     *store.Store
	Publisher Publisher
	Rdb       *redis.Client
	Schedule  string
	Logger    *log.Logger
	Stop      chan struct{}

	lastRun time.Time
}

// Start launches the dispatch loop. It checks the schedule every minute.
func (d *Dispatcher) Start() {
	if d.Stop == nil {
		d.Stop = make(chan struct{})
	}
	ticker := time.NewTicker(time.Minute)
	go func() {
		for {
			select {
			case <-d.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				if d.due(time.Now()) {
					d.tick()
				}
			}
		}
	}()
}

func (d *Dispatcher) due(now time.Time) bool {
	expr, err := cronexpr.Parse(d.Schedule)
	if err != nil {
		// invalid schedule: run at most every 5 minutes
		return d.lastRun.IsZero() || now.Sub(d.lastRun) >= 5*time.Minute
	}
	if d.lastRun.IsZero() {
		return true
	}
	return !expr.Next(d.lastRun).After(now)
}

func (d *Dispatcher) tick() {
	ctx := context.Background()
	d.lastRun = time.Now()

	// distributed lock to avoid duplicate posting
	if d.Rdb != nil {
		ok, _ := d.Rdb.SetNX(ctx, "social:dispatch:lock", "1", 2*time.Minute).Result()
		if !ok {
			return
		}
		defer d.Rdb.Del(ctx, "social:dispatch:lock")
	}

	posts, err := d.Store.QueuedSocialPosts(ctx, 20)
	if err != nil {
		if d.Logger != nil {
			d.Logger.Printf("list queued posts: %v", err)
		}
		return
	}
	for _, p := range posts {
		externalID, err := d.Publisher.Publish(ctx, p.Message)
		if err != nil {
			if d.Logger != nil {
				d.Logger.Printf("publish post %d: %v", p.ID, err)
			}
			_ = d.Store.MarkSocialPostFailed(ctx, p.ID, err.Error())
			continue
		}
		if err := d.Store.MarkSocialPostSent(ctx, p.ID, externalID); err != nil && d.Logger != nil {
			d.Logger.Printf("mark post %d sent: %v", p.ID, err)
		}
	}
}
