package app

import (
	"sync"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"

	"github.com/cloudfoundry/disk-planner/platform/disk"
)

// InventoryCache holds the last device inventory scan. Refresh is called by
// sequencers when a workflow finishes; concurrent refreshes are last write
// wins.
type InventoryCache struct {
	inventory disk.DeviceInventoryParser
	logger    boshlog.Logger
	logTag    string

	lock    sync.RWMutex
	records []disk.DeviceRecord
}

func NewInventoryCache(inventory disk.DeviceInventoryParser, logger boshlog.Logger) *InventoryCache {
	return &InventoryCache{
		inventory: inventory,
		logger:    logger,
		logTag:    "InventoryCache",
	}
}

func (c *InventoryCache) Refresh() error {
	records, err := c.inventory.Scan()
	if err != nil {
		return bosherr.WrapError(err, "Refreshing device inventory")
	}

	c.lock.Lock()
	c.records = records
	c.lock.Unlock()

	c.logger.Debug(c.logTag, "Inventory refreshed with %d devices", len(records))

	return nil
}

func (c *InventoryCache) Records() []disk.DeviceRecord {
	c.lock.RLock()
	defer c.lock.RUnlock()

	records := make([]disk.DeviceRecord, len(c.records))
	copy(records, c.records)
	return records
}
