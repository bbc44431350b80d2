package cache_test

import (
	"context"
	"time"

	"hothour-sync/internal/cache"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("MemoryCache", func() {
	var c *cache.MemoryCache
	var ctx context.Context

	BeforeEach(func() {
		c = cache.NewMemoryCache()
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(c.Close()).To(Succeed())
	})

	It("round-trips a value inside its TTL", func() {
		Expect(c.Set(ctx, cache.ListKey, []byte(`{"cursor":1}`), time.Minute)).To(Succeed())

		got, err := c.Get(ctx, cache.ListKey)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]byte(`{"cursor":1}`)))
	})

	It("misses on unknown keys", func() {
		_, err := c.Get(ctx, cache.AuctionKey(42))
		Expect(err).To(MatchError(cache.ErrCacheMiss))
	})

	It("expires entries after the TTL", func() {
		Expect(c.Set(ctx, cache.ListKey, []byte("stale"), 20*time.Millisecond)).To(Succeed())

		Eventually(func() error {
			_, err := c.Get(ctx, cache.ListKey)
			return err
		}).Should(MatchError(cache.ErrCacheMiss))
	})

	It("drops entries on invalidation", func() {
		key := cache.AuctionKey(1)
		Expect(c.Set(ctx, key, []byte("snapshot"), time.Minute)).To(Succeed())
		Expect(c.Invalidate(ctx, key)).To(Succeed())

		_, err := c.Get(ctx, key)
		Expect(err).To(MatchError(cache.ErrCacheMiss))
	})

	It("hands out copies, not the stored slice", func() {
		Expect(c.Set(ctx, cache.ListKey, []byte("abc"), time.Minute)).To(Succeed())

		got, _ := c.Get(ctx, cache.ListKey)
		got[0] = 'z'

		again, _ := c.Get(ctx, cache.ListKey)
		Expect(again).To(Equal([]byte("abc")))
	})
})
