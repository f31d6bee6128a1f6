package cron

import (
	"log"
	"sync"

	"github.com/robfig/cron/v3"
)

// StartCombineCron schedules repeated combine runs and blocks forever. A new
// run never starts while the previous one is still encoding; overlapping runs
// would fight over the same work directories.
func StartCombineCron(schedule string, run func() error) error {
	var mu sync.Mutex

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if !mu.TryLock() {
			log.Println("combine : previous run still in progress, skipping this trigger")
			return
		}
		defer mu.Unlock()

		log.Println("combine : scheduled run starting")
		if err := run(); err != nil {
			log.Printf("combine : run failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	c.Start()
	log.Printf("combine : cron started with schedule %q", schedule)
	select {}
}
