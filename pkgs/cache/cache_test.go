package cache

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestCache(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Cache Suite")
}

var _ = Describe("Cache", func() {

	var cache *Cache

	BeforeEach(func() {
		cache = NewCache(10)
	})

	Describe(".Add", func() {
		It("should successfully add an item", func() {
			Expect(cache.Len()).To(Equal(0))
			cache.Add("key", "val")
			Expect(cache.Len()).To(Equal(1))
		})

		It("should evict the oldest item at capacity", func() {
			small := NewCache(2)
			small.Add("k1", "v1")
			small.Add("k2", "v2")
			small.Add("k3", "v3")
			Expect(small.Len()).To(Equal(2))
			Expect(small.Has("k1")).To(BeFalse())
			Expect(small.Has("k3")).To(BeTrue())
		})
	})

	Describe(".Peek", func() {
		It("should return value of item", func() {
			cache.Add("some_key", "some_value")
			val := cache.Peek("some_key")
			Expect(val).To(Equal("some_value"))
		})

		It("should return nil if item does not exist", func() {
			val := cache.Peek("some_key")
			Expect(val).To(BeNil())
		})
	})

	Describe(".Get", func() {
		It("should return value of item", func() {
			cache.Add("some_key", "some_value")
			val := cache.Get("some_key")
			Expect(val).To(Equal("some_value"))
		})

		It("should return nil if item does not exist", func() {
			val := cache.Get("some_key")
			Expect(val).To(BeNil())
		})

		It("should refresh recency so the item survives eviction", func() {
			small := NewCache(2)
			small.Add("k1", "v1")
			small.Add("k2", "v2")
			small.Get("k1")
			small.Add("k3", "v3")
			Expect(small.Has("k1")).To(BeTrue())
			Expect(small.Has("k2")).To(BeFalse())
		})
	})

	Describe(".Has", func() {
		It("should return true if item exists", func() {
			cache.Add("k1", "some_value")
			Expect(cache.Has("k1")).To(BeTrue())
		})

		It("should return false if item does not exists", func() {
			cache.Add("k1", "some_value")
			Expect(cache.Has("k2")).To(BeFalse())
		})
	})

	Describe(".Keys", func() {
		It("should return two keys (k1, k2)", func() {
			cache.Add("k1", "some_value")
			cache.Add("k2", "some_value2")
			Expect(cache.Keys()).To(HaveLen(2))
			Expect(cache.Keys()).To(Equal([]interface{}{"k1", "k2"}))
		})

		It("should return empty", func() {
			keys := cache.Keys()
			Expect(keys).To(HaveLen(0))
			Expect(keys).To(Equal([]interface{}{}))
		})
	})

	Describe(".Remove", func() {
		It("should successfully remove item", func() {
			cache.Add("k1", "some_value")
			cache.Add("k2", "some_value2")
			cache.Remove("k1")
			Expect(cache.Has("k1")).To(BeFalse())
			Expect(cache.Has("k2")).To(BeTrue())
		})
	})

	Describe(".Len", func() {
		It("should successfully return length = 2", func() {
			cache.Add("k1", "some_value")
			cache.Add("k2", "some_value2")
			Expect(cache.Len()).To(Equal(2))
		})
	})

})
