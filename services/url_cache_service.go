package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"
)

// Presigned read URLs are valid for 15 minutes; cached slightly shorter so we
// never hand out a link about to expire.
const presignedURLExpiration = 15 * time.Minute
const cacheCleanupInterval = 12 * time.Minute

type URLCacheServiceProvider interface {
	GetReadURL(ctx context.Context, objectKey string) (string, error)
}

// URLCacheService caches presigned R2 read links behind a loadable Ristretto
// cache. Item images are listed and re-fetched constantly (wardrobe screens,
// recommendation image pulls), so the presign round trip is worth saving.
type URLCacheService struct {
	cache      *cache.LoadableCache[string]
	bucketName string
}

func NewURLCacheService(awsService AWSServiceProvider, bucketName string) (*URLCacheService, error) {
	ristrettoCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e7,     // 10M
		MaxCost:     1 << 27, // 128MB
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}

	ristrettoStore := ristretto_store.NewRistretto(ristrettoCache)

	loadFunction := func(ctx context.Context, key any) (string, []store.Option, error) {
		objectKey, ok := key.(string)
		if !ok {
			return "", nil, fmt.Errorf("invalid key type provided to URL cache: expected string, got %T", key)
		}

		log.Printf("CACHE MISS for key: %s. Generating new presigned URL.", objectKey)
		url, err := awsService.GetPresignedR2FileReadURL(ctx, bucketName, objectKey)
		return url, []store.Option{store.WithExpiration(cacheCleanupInterval)}, err
	}

	loadableCache := cache.NewLoadable[string](
		loadFunction,
		cache.New[string](ristrettoStore),
	)
	fmt.Println("Initialized URLCacheService with Ristretto cache!")
	return &URLCacheService{
		cache:      loadableCache,
		bucketName: bucketName,
	}, nil
}

func (s *URLCacheService) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	if objectKey == "" {
		return "", nil
	}

	return s.cache.Get(ctx, objectKey)
}

// R2ImageFetcher resolves wardrobe item object keys to inline blobs for the
// stylist provider, going through the URL cache first.
type R2ImageFetcher struct {
	URLCache URLCacheServiceProvider
}

func (f *R2ImageFetcher) FetchItemImage(ctx context.Context, objectKey string) (ImageBlob, error) {
	url, err := f.URLCache.GetReadURL(ctx, objectKey)
	if err != nil {
		return ImageBlob{}, fmt.Errorf("failed to resolve read url for %s: %w", objectKey, err)
	}
	data, err := ReadFileFromUrl(url)
	if err != nil {
		return ImageBlob{}, err
	}
	return ImageBlob{MIMEType: ImageMIMEType(objectKey), Data: data}, nil
}
