package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AlexandroAurellino/live-shop-bot/types"
)

func productVerdict(name string) types.Verdict {
	return types.Verdict{Intent: types.IntentProductRequest, ProductName: name}
}

func TestCache_PutGet(t *testing.T) {
	c := NewCache(time.Minute)
	c.Put("Show me the lamp", productVerdict("Lamp"))

	got, ok := c.Get("Show me the lamp")
	assert.True(t, ok)
	assert.Equal(t, productVerdict("Lamp"), got)
}

func TestCache_KeyNormalization(t *testing.T) {
	c := NewCache(time.Minute)
	c.Put("  Show Me The Lamp  ", productVerdict("Lamp"))

	got, ok := c.Get("show me the lamp")
	assert.True(t, ok, "case and whitespace should not split cache entries")
	assert.Equal(t, "Lamp", got.ProductName)
}

func TestCache_Miss(t *testing.T) {
	c := NewCache(time.Minute)
	_, ok := c.Get("never seen")
	assert.False(t, ok)
}

func TestCache_ErrorVerdictsNotStored(t *testing.T) {
	c := NewCache(time.Minute)
	c.Put("show me the lamp", types.Verdict{Intent: types.IntentError})

	_, ok := c.Get("show me the lamp")
	assert.False(t, ok, "a transient failure must be retried on the next identical comment")
	assert.Equal(t, 0, c.Len())
}

func TestCache_UninterestingVerdictsNotStored(t *testing.T) {
	c := NewCache(time.Minute)
	c.Put("hello chat", types.Verdict{Intent: types.IntentOther})

	_, ok := c.Get("hello chat")
	assert.False(t, ok)
}

func TestCache_OtherWithProductStored(t *testing.T) {
	// "other" verdicts that still carry a product name are cache-worthy.
	c := NewCache(time.Minute)
	c.Put("is the lamp sold out", types.Verdict{Intent: types.IntentOther, ProductName: "Lamp"})

	_, ok := c.Get("is the lamp sold out")
	assert.True(t, ok)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("show me the lamp", productVerdict("Lamp"))

	// Just inside the TTL.
	now = now.Add(59 * time.Second)
	_, ok := c.Get("show me the lamp")
	assert.True(t, ok)

	// At the TTL boundary the entry is stale and treated as a miss.
	now = now.Add(time.Second)
	_, ok = c.Get("show me the lamp")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry should be evicted on read")
}

func TestCache_Clear(t *testing.T) {
	c := NewCache(time.Minute)
	c.Put("show me the lamp", productVerdict("Lamp"))
	c.Put("show me the mouse", productVerdict("Mouse"))

	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("show me the lamp")
	assert.False(t, ok)
}
