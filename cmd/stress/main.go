package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Carlos-Arce04/diseno-store/internal/adapter/storage"
	"github.com/Carlos-Arce04/diseno-store/internal/core/domain"
	"github.com/Carlos-Arce04/diseno-store/internal/core/service"
	"github.com/Carlos-Arce04/diseno-store/internal/platform/logger"
)

const (
	productID     = 901
	variant       = "M"
	initialUnits  = 20
	totalRequests = 50
)

// Hammers one product variant with concurrent reservations against a
// live Redis and checks that exactly initialUnits of them succeed.
func main() {
	ctx := context.Background()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	adapter := storage.NewRedisAdapter(rdb)
	if err := adapter.SetStock(ctx, productID, domain.Stock{variant: initialUnits}); err != nil {
		log.Fatalf("failed to seed stock: %v", err)
	}

	stock := service.NewStockService(adapter, logger.NewNop())

	var successCount atomic.Int32
	var failCount atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if stock.Reserve(ctx, productID, variant) {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== RESERVATION STRESS RESULTS ==========")
	fmt.Printf("Initial Units:    %d\n", initialUnits)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("================================================")

	if success == int32(initialUnits) && fail == int32(totalRequests-initialUnits) {
		fmt.Printf("PASS: exactly %d reservations succeeded\n", initialUnits)
	} else {
		fmt.Printf("FAIL: expected %d success/%d fail, got %d/%d\n",
			initialUnits, totalRequests-initialUnits, success, fail)
	}

	final, _, err := adapter.GetStock(ctx, productID)
	if err != nil {
		log.Fatalf("failed to read final stock: %v", err)
	}
	fmt.Printf("Final Stock:      %d\n", final.Available(variant))
	if final.Available(variant) == 0 {
		fmt.Println("PASS: stock depleted to 0")
	} else {
		fmt.Printf("FAIL: expected 0 units left, got %d\n", final.Available(variant))
	}
}
