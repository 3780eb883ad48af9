package memory

import (
	"testing"

	"github.com/mmynk/syndicate/internal/storage/storagetest"
)

func TestMemoryStore(t *testing.T) {
	storagetest.Run(t, New())
}
