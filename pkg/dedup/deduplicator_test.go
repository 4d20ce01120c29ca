package dedup

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdmit_FirstSeenOnly(t *testing.T) {
	d := NewDeduplicator(Config{})

	var admitted []string
	for _, uid := range []string{"A", "B", "A"} {
		if d.Admit(uid) {
			admitted = append(admitted, uid)
		}
	}

	assert.Equal(t, []string{"A", "B"}, admitted)
	assert.Equal(t, 2, d.Len())
}

func TestAdmit_EmptyOrUnsetNeverDeduplicated(t *testing.T) {
	d := NewDeduplicator(Config{})
	for i := 0; i < 3; i++ {
		assert.True(t, d.Admit(""))
		assert.True(t, d.Admit("-"))
	}
	assert.Zero(t, d.Len())
}

func TestAdmit_UnboundedByDefault(t *testing.T) {
	d := NewDeduplicator(Config{})
	for i := 0; i < 5000; i++ {
		assert.True(t, d.Admit(fmt.Sprintf("C%d", i)))
	}
	assert.Equal(t, 5000, d.Len())
	assert.False(t, d.Admit("C0"))
}

func TestAdmit_MaxEntriesEvictsOldest(t *testing.T) {
	d := NewDeduplicator(Config{MaxEntries: 2})

	assert.True(t, d.Admit("A"))
	assert.True(t, d.Admit("B"))
	assert.True(t, d.Admit("C")) // evicts A
	assert.Equal(t, 2, d.Len())

	assert.False(t, d.Admit("B"))
	assert.False(t, d.Admit("C"))
	assert.True(t, d.Admit("A"))
}

func TestAdmit_RepeatSightingKeepsEntry(t *testing.T) {
	d := NewDeduplicator(Config{MaxEntries: 2})

	assert.True(t, d.Admit("A"))
	assert.True(t, d.Admit("B"))
	assert.False(t, d.Admit("A")) // A is now the most recently seen
	assert.True(t, d.Admit("C"))  // evicts B

	assert.False(t, d.Admit("A"))
	assert.True(t, d.Admit("B"))
}

func TestAdmit_TTLExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewDeduplicator(Config{TTL: time.Minute})
	d.now = func() time.Time { return now }

	assert.True(t, d.Admit("A"))
	assert.True(t, d.Admit("B"))
	now = now.Add(30 * time.Second)
	assert.False(t, d.Admit("A")) // refreshes A

	now = now.Add(31 * time.Second)
	assert.False(t, d.Admit("A"))
	assert.True(t, d.Admit("B"))

	now = now.Add(61 * time.Second)
	assert.True(t, d.Admit("A"))
	assert.Equal(t, 1, d.Len())
}

func TestAdmit_ConcurrentReaders(t *testing.T) {
	d := NewDeduplicator(Config{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = d.Len()
		}
	}()
	for i := 0; i < 1000; i++ {
		d.Admit(fmt.Sprintf("C%d", i))
	}
	wg.Wait()

	assert.Equal(t, 1000, d.Len())
}
