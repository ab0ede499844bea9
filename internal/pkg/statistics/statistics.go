package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/juntaplay/juntaplay/app/models"
	"github.com/juntaplay/juntaplay/internal/pkg/cache"
	"github.com/juntaplay/juntaplay/internal/pkg/database"
)

const (
	CacheKeyGroupsTotal       = "statistics:groups:total"
	CacheKeyContemplatedDaily = "statistics:groups:contemplated:%s" // Format with date YYYY-MM-DD
	CacheKeyUsers             = "statistics:users:total"
	CacheExpiration           = 30 * time.Minute
)

// StatisticsData holds the aggregate numbers shown on the stats endpoint
type StatisticsData struct {
	TodayContemplated int
	TotalUsers        int
	TotalGroups       int
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached aggregates are stale
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cached aggregates when they are stale
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("failed to update statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// UpdateStatisticsCache updates all statistics in the cache
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalGroups int64
	if err := db.Model(&models.Group{}).Count(&totalGroups).Error; err != nil {
		log.Printf("Error counting total groups: %v", err)
		return err
	}

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		log.Printf("Error counting total users: %v", err)
		return err
	}

	today := time.Now().Format("2006-01-02")
	var contemplatedToday int64
	if err := db.Model(&models.Group{}).
		Where("status = ? AND DATE(contemplated_at) = ?", models.GroupStatusContemplated, today).
		Count(&contemplatedToday).Error; err != nil {
		log.Printf("Error counting contemplated groups: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyGroupsTotal, strconv.FormatInt(totalGroups, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyUsers, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		return err
	}
	dailyKey := fmt.Sprintf(CacheKeyContemplatedDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(contemplatedToday, 10), CacheExpiration); err != nil {
		return err
	}

	return nil
}

// GetStatistics returns the cached aggregates, refreshing them when stale
func GetStatistics() StatisticsData {
	UpdateCacheIfNeeded()

	data := StatisticsData{}
	data.TotalGroups = readCachedInt(CacheKeyGroupsTotal)
	data.TotalUsers = readCachedInt(CacheKeyUsers)
	today := time.Now().Format("2006-01-02")
	data.TodayContemplated = readCachedInt(fmt.Sprintf(CacheKeyContemplatedDaily, today))

	return data
}

func readCachedInt(key string) int {
	raw, err := cache.Get(key)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
