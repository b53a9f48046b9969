// verify_qdrant prints how many outline points a project's collection holds.
//
//	go run ./tools [dir]
package main

import (
	"context"
	"fmt"
	"os"

	qdrantpb "github.com/qdrant/go-client/qdrant"

	"outline/internal/config"
	"outline/internal/indexer"
	"outline/internal/qdrant"
	"outline/internal/utils"
)

func main() {
	if err := config.LoadFromUserConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
	}

	dir := "."
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}
	projectID, err := utils.ComputeProjectID(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to compute project id: %v\n", err)
		os.Exit(1)
	}
	collectionName := indexer.CollectionName(projectID)

	qc, err := qdrant.NewClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create qdrant client: %v\n", err)
		os.Exit(1)
	}
	defer qc.Close()

	ctx := context.Background()
	var totalPoints, totalEntries int
	var offset *qdrantpb.PointId
	limit := uint32(100)

	fmt.Printf("Checking collection: %s\n", collectionName)

	for {
		points, nextOffset, err := qc.Scroll(ctx, collectionName, limit, offset)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error scrolling: %v\n", err)
			break
		}

		totalPoints += len(points)
		for _, p := range points {
			if n, ok := qdrant.PayloadToMap(p.GetPayload())["entry_count"].(int64); ok {
				totalEntries += int(n)
			}
		}
		if len(points) > 0 {
			fmt.Printf("  Batch: %d points\n", len(points))
		}

		if nextOffset == nil || len(points) == 0 {
			break
		}
		offset = nextOffset
	}

	fmt.Printf("\n✓ Total files in collection: %d (%d outline entries)\n", totalPoints, totalEntries)
}
