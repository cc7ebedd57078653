package cutout

import (
	"strings"
	"testing"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivedNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		original string
		hd, std  string
	}{
		{"cat.jpg", "no_bg_cat.png", "std_cat.png"},
		{"cat.png", "no_bg_cat.png", "std_cat.png"},
		{"archive.tar.gz", "no_bg_archive.tar.png", "std_archive.tar.png"},
		{"noext", "no_bg_noext.png", "std_noext.png"},
	}
	for _, tt := range tests {
		hd, std := DerivedNames(tt.original)
		assert.Equal(t, tt.hd, hd, tt.original)
		assert.Equal(t, tt.std, std, tt.original)
	}
}

func TestNamers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "cat.jpg", StemNamer{}.OriginalName("cat.jpg"))

	name := UniqueNamer{}.OriginalName("cat.jpg")
	id, rest, ok := strings.Cut(name, "_")
	require.True(t, ok)
	assert.Equal(t, "cat.jpg", rest)
	_, err := ksuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, name, UniqueNamer{}.OriginalName("cat.jpg"))
}

func TestKeyedMutex(t *testing.T) {
	t.Parallel()

	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.len())

	done := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		unlock()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second Lock(a) must wait")
	default:
	}

	unlockA()
	<-done
	unlockB()
	assert.Zero(t, k.len())
}
